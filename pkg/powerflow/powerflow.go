// Package powerflow implements four power-flow solvers: Newton-Raphson
// (iterative, polar form), iterative-current (constant factorization),
// and the two direct one-pass variants, linear and linear-current.
//
// The two iterative solvers take (y_bus, input, options, logger) and the
// two direct ones take (y_bus, input, logger); all four return a
// SolverOutput. Every bus carrying a source reference
// voltage is treated as a slack-like bus (its voltage is pinned and
// its row replaced by an identity equation), generalizing the usual
// single-slack-bus convention to however many source-connected buses
// the grid has.
package powerflow

import (
	"math"
	"math/cmplx"

	"github.com/sirupsen/logrus"

	"powergrid/pkg/params"
	"powergrid/pkg/pgerr"
	"powergrid/pkg/sparselu"
	"powergrid/pkg/ybus"
)

// LoadGen is one load/generator injection at a bus-phase, in per-unit.
// Sign convention: generators positive, loads negative (applied by the
// caller before this struct is built).
type LoadGen struct {
	ID   int32
	S    complex128
	Type params.LoadGenType
}

// Input carries per-source reference voltages and per-bus-phase power
// injections, one entry per load/gen plus one entry per
// source-connected bus.
type Input struct {
	// SourceVoltage maps a flat bus-phase index (bus*dim+phase) to its
	// pinned reference voltage.
	SourceVoltage map[int]complex128
	// LoadGens maps a flat bus-phase index to the load/gens attached there.
	LoadGens map[int][]LoadGen
}

// Options carries the convergence tuning of run_power_flow.
type Options struct {
	ErrTol  float64
	MaxIter int
}

// DefaultOptions returns the standard convergence tolerance and iteration cap.
func DefaultOptions() Options { return Options{ErrTol: 1e-8, MaxIter: 100} }

// SolverOutput is the flat per-bus-phase voltage solution.
type SolverOutput struct {
	U          []complex128
	Iterations int
}

func setpointAt(input *Input, u []complex128, n int) complex128 {
	var s complex128
	for _, lg := range input.LoadGens[n] {
		s += params.Injection(lg.Type, lg.S, u[n])
	}
	return s
}

// RunNewtonRaphson runs the polar-form Newton-Raphson iteration.
func RunNewtonRaphson(yb *ybus.YBus, input Input, opt Options, logger logrus.FieldLogger) (SolverOutput, error) {
	n := yb.N
	pinned := make([]bool, n)
	v := make([]float64, n)
	theta := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = 1.0
	}
	for idx, uref := range input.SourceVoltage {
		pinned[idx] = true
		v[idx] = cmplx.Abs(uref)
		theta[idx] = cmplx.Phase(uref)
	}

	u := func() []complex128 {
		out := make([]complex128, n)
		for i := range out {
			out[i] = cmplx.Rect(v[i], theta[i])
		}
		return out
	}

	mat, err := sparselu.New(2 * n)
	if err != nil {
		return SolverOutput{}, err
	}
	defer mat.Destroy()

	relaxedWarned := false
	maxTotalIter := opt.MaxIter * 2
	for iter := 0; iter < maxTotalIter; iter++ {
		curU := u()
		i := yb.MulVec(curU)
		s := make([]complex128, n)
		for k := range s {
			s[k] = curU[k] * cmplx.Conj(i[k])
		}

		maxMismatch := 0.0
		mismatch := make([]complex128, n)
		for k := 0; k < n; k++ {
			if pinned[k] {
				continue
			}
			sset := setpointAt(&input, curU, k)
			mismatch[k] = sset - s[k]
			if math.IsNaN(real(mismatch[k])) || math.IsNaN(imag(mismatch[k])) {
				return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "NaN voltage/power at node %d on iteration %d", k, iter)
			}
			if m := cmplx.Abs(mismatch[k]); m > maxMismatch {
				maxMismatch = m
			}
		}
		if logger != nil {
			logger.Debugf("newton-raphson iter=%d max_mismatch=%g", iter, maxMismatch)
		}

		tol := opt.ErrTol
		if iter >= opt.MaxIter {
			tol = opt.ErrTol * 100
			if !relaxedWarned {
				relaxedWarned = true
				if logger != nil {
					logger.Warnf("newton-raphson did not converge in %d iterations, retrying with relaxed tolerance %g", opt.MaxIter, tol)
				}
			}
		}
		if maxMismatch < tol {
			return SolverOutput{U: curU, Iterations: iter}, nil
		}

		mat.Clear()
		rhs := make([]complex128, 2*n)
		for row := 0; row < n; row++ {
			if pinned[row] {
				mat.AddAt(row, row, 1)
				mat.AddAt(n+row, n+row, 1)
				continue
			}
			for idx := yb.RowPtr[row]; idx < yb.RowPtr[row+1]; idx++ {
				col := yb.ColIdx[idx]
				y := yb.Values[idx]
				g, b := real(y), imag(y)
				if col == row {
					p, q := real(s[row]), imag(s[row])
					h := -q - v[row]*v[row]*b
					nn := p/v[row] + v[row]*g
					m := p - v[row]*v[row]*g
					l := q/v[row] - v[row]*b
					mat.AddAt(row, col, complex(h, 0))
					mat.AddAt(row, n+col, complex(nn, 0))
					mat.AddAt(n+row, col, complex(m, 0))
					mat.AddAt(n+row, n+col, complex(l, 0))
					continue
				}
				thetaIK := theta[row] - theta[col]
				sinIK, cosIK := math.Sincos(thetaIK)
				h := v[row] * v[col] * (g*sinIK - b*cosIK)
				nn := v[row] * (g*cosIK + b*sinIK)
				m := -v[row] * v[col] * (g*cosIK + b*sinIK)
				l := v[row] * (g*sinIK - b*cosIK)
				mat.AddAt(row, col, complex(h, 0))
				mat.AddAt(row, n+col, complex(nn, 0))
				mat.AddAt(n+row, col, complex(m, 0))
				mat.AddAt(n+row, n+col, complex(l, 0))
			}
			rhs[row] = complex(real(mismatch[row]), 0)
			rhs[n+row] = complex(imag(mismatch[row]), 0)
		}

		if err := mat.Factor(); err != nil {
			return SolverOutput{}, err
		}
		dx, err := mat.Solve(rhs)
		if err != nil {
			return SolverOutput{}, err
		}
		for k := 0; k < n; k++ {
			if pinned[k] {
				continue
			}
			theta[k] += real(dx[k])
			v[k] += real(dx[n+k])
		}
	}

	return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "newton-raphson did not converge in %d iterations even with relaxed tolerance", maxTotalIter)
}

// buildPinnedSystem builds a sparselu.Matrix over yb's sparsity with
// pinned rows replaced by identity equations, shared by
// iterative-current, linear and linear-current.
func buildPinnedSystem(yb *ybus.YBus, pinned []bool, extraDiag []complex128) (*sparselu.Matrix, error) {
	mat, err := sparselu.New(yb.N)
	if err != nil {
		return nil, err
	}
	for row := 0; row < yb.N; row++ {
		if pinned[row] {
			mat.AddAt(row, row, 1)
			continue
		}
		for idx := yb.RowPtr[row]; idx < yb.RowPtr[row+1]; idx++ {
			col := yb.ColIdx[idx]
			v := yb.Values[idx]
			if col == row && extraDiag != nil {
				v += extraDiag[row]
			}
			mat.AddAt(row, col, v)
		}
	}
	return mat, nil
}

func pinnedFromInput(n int, input Input) ([]bool, []complex128) {
	pinned := make([]bool, n)
	uref := make([]complex128, n)
	for idx, u := range input.SourceVoltage {
		pinned[idx] = true
		uref[idx] = u
	}
	return pinned, uref
}

// RunIterativeCurrent runs the constant-factorization current-injection
// iteration.
func RunIterativeCurrent(yb *ybus.YBus, input Input, opt Options, logger logrus.FieldLogger) (SolverOutput, error) {
	n := yb.N
	pinned, uref := pinnedFromInput(n, input)

	mat, err := buildPinnedSystem(yb, pinned, nil)
	if err != nil {
		return SolverOutput{}, err
	}
	defer mat.Destroy()
	if err := mat.Factor(); err != nil {
		return SolverOutput{}, err
	}

	u := make([]complex128, n)
	for i := range u {
		u[i] = 1
	}
	for idx, ur := range uref {
		if pinned[idx] {
			u[idx] = ur
		}
	}

	relaxedWarned := false
	maxTotalIter := opt.MaxIter * 2
	for iter := 0; iter < maxTotalIter; iter++ {
		rhs := make([]complex128, n)
		for k := 0; k < n; k++ {
			if pinned[k] {
				rhs[k] = uref[k]
				continue
			}
			s := setpointAt(&input, u, k)
			rhs[k] = cmplx.Conj(s / u[k])
		}
		next, err := mat.Solve(rhs)
		if err != nil {
			return SolverOutput{}, err
		}

		maxDelta := 0.0
		for k := 0; k < n; k++ {
			if d := cmplx.Abs(next[k] - u[k]); d > maxDelta {
				maxDelta = d
			}
			if math.IsNaN(real(next[k])) {
				return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "NaN voltage at node %d on iteration %d", k, iter)
			}
		}
		if logger != nil {
			logger.Debugf("iterative-current iter=%d max_delta=%g", iter, maxDelta)
		}
		u = next

		tol := opt.ErrTol
		if iter >= opt.MaxIter {
			tol = opt.ErrTol * 100
			if !relaxedWarned {
				relaxedWarned = true
				if logger != nil {
					logger.Warnf("iterative-current did not converge in %d iterations, retrying with relaxed tolerance %g", opt.MaxIter, tol)
				}
			}
		}
		if maxDelta < tol {
			return SolverOutput{U: u, Iterations: iter}, nil
		}
	}
	return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "iterative-current did not converge in %d iterations even with relaxed tolerance", maxTotalIter)
}

// RunLinear approximates every load/gen as constant admittance at
// rated (1pu) voltage, folds it into the Y-bus diagonal, and solves
// once.
func RunLinear(yb *ybus.YBus, input Input, logger logrus.FieldLogger) (SolverOutput, error) {
	n := yb.N
	pinned, uref := pinnedFromInput(n, input)

	extraDiag := make([]complex128, n)
	for k, lgs := range input.LoadGens {
		if pinned[k] {
			continue
		}
		var y complex128
		for _, lg := range lgs {
			y -= cmplx.Conj(lg.S) // injection S at |U| = 1pu draws current -conj(S)*U
		}
		extraDiag[k] = y
	}

	mat, err := buildPinnedSystem(yb, pinned, extraDiag)
	if err != nil {
		return SolverOutput{}, err
	}
	defer mat.Destroy()
	if err := mat.Factor(); err != nil {
		return SolverOutput{}, err
	}

	rhs := make([]complex128, n)
	for idx, ur := range uref {
		if pinned[idx] {
			rhs[idx] = ur
		}
	}
	u, err := mat.Solve(rhs)
	if err != nil {
		return SolverOutput{}, err
	}
	if logger != nil {
		logger.Debugf("linear power flow solved directly, n=%d", n)
	}
	return SolverOutput{U: u, Iterations: 0}, nil
}

// RunLinearCurrent approximates every load/gen as constant current at
// rated (1pu) voltage and solves once.
func RunLinearCurrent(yb *ybus.YBus, input Input, logger logrus.FieldLogger) (SolverOutput, error) {
	n := yb.N
	pinned, uref := pinnedFromInput(n, input)

	mat, err := buildPinnedSystem(yb, pinned, nil)
	if err != nil {
		return SolverOutput{}, err
	}
	defer mat.Destroy()
	if err := mat.Factor(); err != nil {
		return SolverOutput{}, err
	}

	rhs := make([]complex128, n)
	for k, lgs := range input.LoadGens {
		if pinned[k] {
			continue
		}
		var i complex128
		for _, lg := range lgs {
			i += cmplx.Conj(lg.S) // conj(S/U_rated), U_rated = 1pu
		}
		rhs[k] = i
	}
	for idx, ur := range uref {
		if pinned[idx] {
			rhs[idx] = ur
		}
	}
	u, err := mat.Solve(rhs)
	if err != nil {
		return SolverOutput{}, err
	}
	if logger != nil {
		logger.Debugf("linear-current power flow solved directly, n=%d", n)
	}
	return SolverOutput{U: u, Iterations: 0}, nil
}
