// Package sparselu is the sparse LU factorization shared by every
// solver: prefactorize once, solve (and re-solve) many times. As
// described in ybus's package doc, every block-sparse network in this
// module (Y-bus, polar-form power-flow/state-estimation Jacobians) is
// realized as a flat scalar complex sparse matrix, so this package is
// a single thin adapter over github.com/edp1096/sparse rather than a
// hand-rolled block factorizer - the same KLU-style Factor/Solve
// wrapper a circuit simulator builds around it for device stamps, just
// fed dim*dim scalar stamps per logical block instead of one stamp per
// device terminal pair.
package sparselu

import (
	"github.com/edp1096/sparse"

	"powergrid/pkg/pgerr"
)

// Matrix is a factorizable complex sparse linear system of size n.
// Entries accumulate additively via AddAt, the familiar
// stamp-by-accumulation idiom for building a sparse system incrementally.
type Matrix struct {
	n   int
	m   *sparse.Matrix
}

// New allocates an n x n complex sparse matrix ready to be stamped.
func New(n int) (*Matrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}
	m, err := sparse.Create(int64(n), config)
	if err != nil {
		return nil, pgerr.Wrap(pgerr.SparseMatrixError, err, "creating sparse matrix of size %d", n)
	}
	return &Matrix{n: n, m: m}, nil
}

// FromCSR builds a Matrix pre-stamped from a flat CSR pattern and
// parallel complex values - the common case of converting a ybus.YBus
// or an assembled Jacobian directly into a factorizable system.
func FromCSR(n int, rowPtr, colIdx []int, values []complex128) (*Matrix, error) {
	mx, err := New(n)
	if err != nil {
		return nil, err
	}
	for row := 0; row < n; row++ {
		for idx := rowPtr[row]; idx < rowPtr[row+1]; idx++ {
			mx.AddAt(row, colIdx[idx], values[idx])
		}
	}
	return mx, nil
}

// AddAt accumulates v into the (i, j) entry (0-based).
func (mx *Matrix) AddAt(i, j int, v complex128) {
	el := mx.m.GetElement(int64(i+1), int64(j+1))
	el.Real += real(v)
	el.Imag += imag(v)
}

// Clear zeroes every stamped entry, ready for re-stamping. The
// solver-owned scratch buffer is reused across iterations rather than
// reallocated.
func (mx *Matrix) Clear() { mx.m.Clear() }

// Factor performs the numeric LU factorization. A singular pivot is
// reported as pgerr.SparseMatrixError, the only recoverable error in
// the solve path.
func (mx *Matrix) Factor() error {
	if err := mx.m.Factor(); err != nil {
		return pgerr.Wrap(pgerr.SparseMatrixError, err, "factorizing sparse matrix")
	}
	return nil
}

// Solve performs forward/back substitution for right-hand side rhs
// (length n) against the most recent Factor.
func (mx *Matrix) Solve(rhs []complex128) ([]complex128, error) {
	n := mx.n
	r := make([]float64, n+1)
	ri := make([]float64, n+1)
	for i, v := range rhs {
		r[i+1] = real(v)
		ri[i+1] = imag(v)
	}
	sol, solImag, err := mx.m.SolveComplex(r, ri)
	if err != nil {
		return nil, pgerr.Wrap(pgerr.SparseMatrixError, err, "solving sparse system")
	}
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(sol[i+1], solImag[i+1])
	}
	return x, nil
}

// N returns the system size.
func (mx *Matrix) N() int { return mx.n }

// Destroy releases the underlying native sparse resources.
func (mx *Matrix) Destroy() {
	if mx.m != nil {
		mx.m.Destroy()
	}
}
