// Package topology holds the bus/branch connectivity graph that Y-bus
// structural assembly and every solver is built from: the slack bus,
// the phase-shift reference per bus, and the CSR-style per-bus/per-
// branch-side groupings of sources, shunts, load/gens and sensors.
package topology

import (
	"fmt"

	"powergrid/internal/pgconst"
	"powergrid/pkg/pgerr"
)

// CSR is a compressed, bus-ordered (or branch-side-ordered) grouping:
// Offsets has length n+1 and is strictly non-decreasing; Flat[Offsets[i]:Offsets[i+1]]
// lists the component indices attached to group i.
type CSR struct {
	Offsets []int
	Flat    []int
}

// NewCSR builds a CSR from a slice of per-group index lists.
func NewCSR(groups [][]int) CSR {
	offsets := make([]int, len(groups)+1)
	var flat []int
	for i, g := range groups {
		offsets[i] = len(flat)
		flat = append(flat, g...)
	}
	offsets[len(groups)] = len(flat)
	return CSR{Offsets: offsets, Flat: flat}
}

// Group returns the indices attached to group i.
func (c CSR) Group(i int) []int {
	return c.Flat[c.Offsets[i]:c.Offsets[i+1]]
}

// BranchEndpoint is a (from, to) bus pair. Either may be Disconnected
// (-1) to denote a terminal-disconnected side.
type BranchEndpoint struct {
	From, To int
}

const Disconnected = -1

// Topology is the immutable bus/branch connectivity graph shared
// read-only by Y-bus and every solver.
type Topology struct {
	NBus       int
	SlackBus   int
	PhaseShift []float64 // radians, per bus

	BranchBusIdx []BranchEndpoint

	SourcesPerBus  CSR
	ShuntsPerBus   CSR
	LoadGensPerBus CSR

	// Sensor groupings.
	VoltageSensorsPerBus CSR
	PowerSensorsPerBus   CSR // bus-connected power sensors
	PowerSensorsFromSide CSR // branch-from-side power sensors, indexed by branch
	PowerSensorsToSide   CSR // branch-to-side power sensors, indexed by branch
	CurrentSensorsFromSide CSR
	CurrentSensorsToSide   CSR
}

// Validate checks the topology's structural invariants.
func (t *Topology) Validate() error {
	if t.SlackBus < 0 || t.SlackBus >= t.NBus {
		return pgerr.New(pgerr.InvalidBranch, "slack bus %d out of range [0,%d)", t.SlackBus, t.NBus)
	}
	if len(t.PhaseShift) != t.NBus {
		return pgerr.New(pgerr.InvalidBranch, "phase shift length %d does not match n_bus %d", len(t.PhaseShift), t.NBus)
	}
	for k, be := range t.BranchBusIdx {
		if be.From == be.To && be.From != Disconnected {
			return pgerr.New(pgerr.InvalidBranch, "branch %d: from == to == %d", k, be.From)
		}
		if be.From != Disconnected && (be.From < 0 || be.From >= t.NBus) {
			return pgerr.New(pgerr.InvalidBranch, "branch %d: from bus %d out of range", k, be.From)
		}
		if be.To != Disconnected && (be.To < 0 || be.To >= t.NBus) {
			return pgerr.New(pgerr.InvalidBranch, "branch %d: to bus %d out of range", k, be.To)
		}
	}
	for _, csr := range []struct {
		name string
		c    CSR
	}{
		{"sources", t.SourcesPerBus}, {"shunts", t.ShuntsPerBus}, {"load_gens", t.LoadGensPerBus},
		{"voltage_sensors", t.VoltageSensorsPerBus}, {"power_sensors", t.PowerSensorsPerBus},
	} {
		if len(csr.c.Offsets) == 0 {
			continue
		}
		if len(csr.c.Offsets) != t.NBus+1 {
			return pgerr.New(pgerr.InvalidBranch, "%s CSR offsets length %d != n_bus+1 (%d)", csr.name, len(csr.c.Offsets), t.NBus+1)
		}
		for i := 1; i < len(csr.c.Offsets); i++ {
			if csr.c.Offsets[i] < csr.c.Offsets[i-1] {
				return fmt.Errorf("%s CSR offsets not non-decreasing at %d", csr.name, i)
			}
		}
	}
	return nil
}

// Energized reports whether bus b is reachable from the slack bus
// through branches/links that are themselves energized. Callers pass
// the live connectivity (post structural-update status) as adjacency.
func Energized(nBus int, liveEdges []BranchEndpoint, slackBus int) []bool {
	adj := make([][]int, nBus)
	for _, e := range liveEdges {
		if e.From == Disconnected || e.To == Disconnected {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	seen := make([]bool, nBus)
	queue := []int{slackBus}
	seen[slackBus] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, n := range adj[b] {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return seen
}

// DefaultTolerance re-exports pgconst.Tolerance for callers that only
// import topology.
const DefaultTolerance = pgconst.Tolerance
