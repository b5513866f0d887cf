package topology_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/pkg/topology"
)

func radialTopology() *topology.Topology {
	return &topology.Topology{
		NBus:       3,
		SlackBus:   0,
		PhaseShift: make([]float64, 3),
		BranchBusIdx: []topology.BranchEndpoint{
			{From: 0, To: 1},
			{From: 1, To: 2},
		},
	}
}

func TestValidateAcceptsWellFormedTopology(t *testing.T) {
	topo := radialTopology()
	require.NoError(t, topo.Validate())
}

func TestValidateRejectsSlackOutOfRange(t *testing.T) {
	topo := radialTopology()
	topo.SlackBus = 5
	require.Error(t, topo.Validate())
}

func TestValidateRejectsSelfLoop(t *testing.T) {
	topo := radialTopology()
	topo.BranchBusIdx = append(topo.BranchBusIdx, topology.BranchEndpoint{From: 1, To: 1})
	require.Error(t, topo.Validate())
}

func TestValidateRejectsBusOutOfRange(t *testing.T) {
	topo := radialTopology()
	topo.BranchBusIdx[0].To = 99
	require.Error(t, topo.Validate())
}

func TestEnergizedReachability(t *testing.T) {
	edges := []topology.BranchEndpoint{
		{From: 0, To: 1},
		{From: 1, To: 2},
	}
	reach := topology.Energized(4, edges, 0)
	require.True(t, reach[0])
	require.True(t, reach[1])
	require.True(t, reach[2])
	require.False(t, reach[3])
}

func TestEnergizedSkipsDisconnectedBranch(t *testing.T) {
	edges := []topology.BranchEndpoint{
		{From: 0, To: 1},
		{From: topology.Disconnected, To: 2},
	}
	reach := topology.Energized(3, edges, 0)
	require.True(t, reach[1])
	require.False(t, reach[2])
}

func TestCSRGroup(t *testing.T) {
	csr := topology.NewCSR([][]int{{}, {3, 4}, {7}})
	require.Empty(t, csr.Group(0))
	require.Equal(t, []int{3, 4}, csr.Group(1))
	require.Equal(t, []int{7}, csr.Group(2))
}
