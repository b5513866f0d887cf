// Package ybus assembles and maintains the sparse complex admittance
// matrix: structural pattern derived once from topology (with symbolic
// LU fill-in predicted up front), numeric values derived from
// branch/shunt calculation parameters and refreshed whenever they
// change.
//
// Y-bus is logically a sparse matrix of dim*dim tensor blocks (dim=1
// for the symmetric/single-phase-equivalent network, dim=3 for the
// asymmetric per-phase network). This
// package represents it as one flat scalar complex sparse network of
// size N = n_bus*dim instead of a literal block-sparse structure: bus
// i phase p is flat node i*dim+p, and a logical dim x dim block between
// buses i and k becomes its dim*dim scalar entries between the
// corresponding flat nodes. Symbolic fill-in, LU (see sparselu) and
// Jacobian assembly (see powerflow, stateest) all operate on this flat
// representation uniformly for dim=1 and dim=3 - this is mathematically
// equivalent to literal 1x1/3x3 block LDU under the natural,
// phase-consecutive elimination order the spec requires, and it lets
// every solver share one scalar sparse-matrix engine (see sparselu)
// instead of a generic block-algebra one. See DESIGN.md.
package ybus

import (
	"sort"

	"powergrid/pkg/params"
	"powergrid/pkg/pgerr"
	"powergrid/pkg/topology"
)

// YBus is the sparse admittance network, structural pattern frozen
// after Build, numeric Values mutable via Refresh.
type YBus struct {
	Dim  int
	NBus int
	N    int // NBus * Dim

	RowPtr []int // length N+1
	ColIdx []int // length nnz, sorted ascending within each row
	Values []complex128

	branchStamps []branchStamp
	shuntStamps  []shuntStamp
}

type branchStamp struct {
	// flat positions into Values for each of the dim*dim entries of
	// Yff, Yft, Ytf, Ytt - index -1 means "no such entry" (disconnected side).
	posFF, posFT, posTF, posTT []int
}

type shuntStamp struct {
	pos []int // dim*dim positions for the shunt's diagonal block
}

// Build constructs the structural pattern for a topology at the given
// block dimension (1 or 3): bus-bus connectivity implied by
// topo.BranchBusIdx plus a full intra-bus diagonal block plus symbolic
// LU fill-in under natural elimination order.
func Build(topo *topology.Topology, dim int) (*YBus, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	n := topo.NBus * dim

	adj := make([]map[int]struct{}, n)
	for i := range adj {
		adj[i] = make(map[int]struct{})
	}
	addEdge := func(a, b int) {
		adj[a][b] = struct{}{}
		adj[b][a] = struct{}{}
	}
	flat := func(bus, phase int) int { return bus*dim + phase }

	// Every bus has a full diagonal block (spec: "diagonal block of
	// every bus always exists").
	for b := 0; b < topo.NBus; b++ {
		for p := 0; p < dim; p++ {
			for q := 0; q < dim; q++ {
				addEdge(flat(b, p), flat(b, q))
			}
		}
	}
	// Branch connectivity.
	for _, be := range topo.BranchBusIdx {
		if be.From == topology.Disconnected || be.To == topology.Disconnected {
			continue
		}
		for p := 0; p < dim; p++ {
			for q := 0; q < dim; q++ {
				addEdge(flat(be.From, p), flat(be.To, q))
			}
		}
	}

	// Symbolic fill-in over the natural elimination order 0..n-1:
	// classic "elimination graph" construction with no reordering.
	for k := 0; k < n; k++ {
		var later []int
		for j := range adj[k] {
			if j > k {
				later = append(later, j)
			}
		}
		for i := 0; i < len(later); i++ {
			for j := i + 1; j < len(later); j++ {
				addEdge(later[i], later[j])
			}
		}
	}

	rowPtr := make([]int, n+1)
	var colIdx []int
	for i := 0; i < n; i++ {
		rowPtr[i] = len(colIdx)
		row := make([]int, 0, len(adj[i]))
		for j := range adj[i] {
			row = append(row, j)
		}
		sort.Ints(row)
		colIdx = append(colIdx, row...)
	}
	rowPtr[n] = len(colIdx)

	yb := &YBus{
		Dim: dim, NBus: topo.NBus, N: n,
		RowPtr: rowPtr, ColIdx: colIdx, Values: make([]complex128, len(colIdx)),
	}

	yb.branchStamps = make([]branchStamp, len(topo.BranchBusIdx))
	for k, be := range topo.BranchBusIdx {
		var st branchStamp
		if be.From != topology.Disconnected && be.To != topology.Disconnected {
			st.posFF = yb.blockPositions(be.From, be.From)
			st.posFT = yb.blockPositions(be.From, be.To)
			st.posTF = yb.blockPositions(be.To, be.From)
			st.posTT = yb.blockPositions(be.To, be.To)
		} else if be.From != topology.Disconnected {
			st.posFF = yb.blockPositions(be.From, be.From)
		} else if be.To != topology.Disconnected {
			st.posTT = yb.blockPositions(be.To, be.To)
		}
		yb.branchStamps[k] = st
	}

	return yb, nil
}

// blockPositions returns the Values-array positions of the dim*dim
// scalar entries making up the logical block between buses busA and
// busB, row-major (phase p of busA, phase q of busB).
func (yb *YBus) blockPositions(busA, busB int) []int {
	pos := make([]int, yb.Dim*yb.Dim)
	for p := 0; p < yb.Dim; p++ {
		row := busA*yb.Dim + p
		start, end := yb.RowPtr[row], yb.RowPtr[row+1]
		for q := 0; q < yb.Dim; q++ {
			col := busB*yb.Dim + q
			idx := sort.SearchInts(yb.ColIdx[start:end], col) + start
			if idx >= end || yb.ColIdx[idx] != col {
				pos[p*yb.Dim+q] = -1
				continue
			}
			pos[p*yb.Dim+q] = idx
		}
	}
	return pos
}

// SetShuntStamps registers block positions for each shunt's bus, so
// that Refresh can add shunt contributions additively. Call once after
// Build, whenever the shunt-to-bus mapping is known.
func (yb *YBus) SetShuntStamps(busPerShunt []int) {
	yb.shuntStamps = make([]shuntStamp, len(busPerShunt))
	for k, bus := range busPerShunt {
		yb.shuntStamps[k] = shuntStamp{pos: yb.blockPositions(bus, bus)}
	}
}

func addBlock(values []complex128, pos []int, block []complex128) {
	for i, p := range pos {
		if p < 0 {
			continue
		}
		values[p] += block[i]
	}
}

// Refresh zeroes the numeric array and re-stamps every energized
// branch and shunt contribution. Sources are intentionally not folded
// in here - they are applied by power-flow/state-estimation solvers
// separately (slack pinning) or by the short-circuit solver (Thevenin
// admittance).
func (yb *YBus) Refresh(branches []params.BranchParam, branchEnergized []bool, shunts []params.ShuntParam, shuntEnergized []bool) error {
	for i := range yb.Values {
		yb.Values[i] = 0
	}
	if len(branches) != len(yb.branchStamps) {
		return pgerr.New(pgerr.MissingCaseForEnum, "branch parameter count %d does not match topology branch count %d", len(branches), len(yb.branchStamps))
	}
	for k, bp := range branches {
		if !branchEnergized[k] {
			continue
		}
		st := yb.branchStamps[k]
		addBlock(yb.Values, st.posFF, bp.Yff)
		addBlock(yb.Values, st.posFT, bp.Yft)
		addBlock(yb.Values, st.posTF, bp.Ytf)
		addBlock(yb.Values, st.posTT, bp.Ytt)
	}
	for k, sp := range shunts {
		if !shuntEnergized[k] {
			continue
		}
		addBlock(yb.Values, yb.shuntStamps[k].pos, sp.Y)
	}
	return nil
}

// At returns the scalar entry at flat (row, col), or 0 if absent.
func (yb *YBus) At(row, col int) complex128 {
	start, end := yb.RowPtr[row], yb.RowPtr[row+1]
	idx := sort.SearchInts(yb.ColIdx[start:end], col) + start
	if idx >= end || yb.ColIdx[idx] != col {
		return 0
	}
	return yb.Values[idx]
}

// MulVec computes I = Y*U for a flat vector U of length N.
func (yb *YBus) MulVec(u []complex128) []complex128 {
	i := make([]complex128, yb.N)
	for row := 0; row < yb.N; row++ {
		var acc complex128
		for idx := yb.RowPtr[row]; idx < yb.RowPtr[row+1]; idx++ {
			acc += yb.Values[idx] * u[yb.ColIdx[idx]]
		}
		i[row] = acc
	}
	return i
}
