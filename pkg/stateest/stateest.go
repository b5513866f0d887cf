// Package stateest implements two state-estimation solvers:
// iterative-linear (ILSE, Gauss-Newton on a linearised current-domain
// measurement model) and Newton-Raphson (NRSE, full polar-form
// measurement Jacobian). Both solve the weighted least-squares problem
//
//	min_U sum_m (z_m - h_m(U))^T W_m (z_m - h_m(U))
//
// by accumulating the normal equations H^T W H x = H^T W z directly as
// sparse outer products over the buses each measurement touches (one
// for a voltage sensor, two for a current sensor, a bus and its
// Y-bus neighbours for a power or zero-injection row), rather than
// materialising H - the measurement matrix is
// never more than a handful of nonzeros per row, so this is both
// simpler and cheaper than a dense H.
package stateest

import (
	"math"
	"math/cmplx"

	"github.com/sirupsen/logrus"

	"powergrid/pkg/params"
	"powergrid/pkg/pgerr"
	"powergrid/pkg/sparselu"
	"powergrid/pkg/ybus"
)

// ZeroInjectionVariance is the (small, high-confidence) variance used
// for the implicit zero-injection pseudo-measurement automatically
// added at every bus-phase with no explicit power or voltage
// measurement (current sensors do not count). This is the standard
// WLS state-estimation technique for
// tying an otherwise unobserved bus into the measurement set through
// the network model.
const ZeroInjectionVariance = 1e-12

// CurrentMeasurement is a current-sensor reading at one side of a branch.
type CurrentMeasurement struct {
	I         complex128
	Variance  float64
	AngleType params.AngleMeasureType
}

// Measurements is the full measurement set for one state-estimation
// solve. Bus-attached sensors (VoltageSensors, PowerSensors) are keyed
// by flat bus-phase index (bus*dim+phase). Branch-side current sensors
// (CurrentSensorsFrom, CurrentSensorsTo) are keyed directly by branch
// index - current-sensor support is dim=1 only, so there is no phase
// component to flatten in.
type Measurements struct {
	VoltageSensors map[int]params.VoltageSensorParam
	PowerSensors   map[int]params.PowerSensorParam

	CurrentSensorsFrom map[int]CurrentMeasurement
	CurrentSensorsTo   map[int]CurrentMeasurement
	// BranchBuses maps branch index to (fromFlat, toFlat) base bus-phase
	// offsets (bus*dim), used to locate the two buses a branch connects.
	BranchBuses map[int][2]int
	BranchYff   map[int][]complex128
	BranchYft   map[int][]complex128
	BranchYtf   map[int][]complex128
	BranchYtt   map[int][]complex128
}

// Options carries the convergence tuning of run_state_estimation.
type Options struct {
	ErrTol  float64
	MaxIter int
}

func DefaultOptions() Options { return Options{ErrTol: 1e-8, MaxIter: 100} }

// SolverOutput is the flat per-bus-phase voltage solution.
type SolverOutput struct {
	U          []complex128
	Iterations int
}

func weightOf(variance float64) float64 {
	if variance <= 0 {
		return 1 / ZeroInjectionVariance
	}
	return 1 / variance
}

// unmeasuredBuses returns the flat bus-phase indices with no explicit
// voltage or power measurement - candidates for the implicit
// zero-injection pseudo-measurement.
func unmeasuredBuses(n int, meas *Measurements) []int {
	covered := make([]bool, n)
	for k := range meas.VoltageSensors {
		covered[k] = true
	}
	for k := range meas.PowerSensors {
		covered[k] = true
	}
	var out []int
	for i := 0; i < n; i++ {
		if !covered[i] {
			out = append(out, i)
		}
	}
	return out
}

// accumulator builds H^T W H / H^T W z by adding, per measurement, the
// outer product of its sparse row.
type accumulator struct {
	mat *sparselu.Matrix
	rhs []complex128
}

func newAccumulator(n int) (*accumulator, error) {
	mat, err := sparselu.New(n)
	if err != nil {
		return nil, err
	}
	return &accumulator{mat: mat, rhs: make([]complex128, n)}, nil
}

// addRow adds one measurement row h (bus -> complex coefficient),
// target z and scalar weight w into the normal equations.
func (a *accumulator) addRow(h map[int]complex128, z complex128, w float64) {
	for bi, hi := range h {
		a.rhs[bi] += cmplx.Conj(hi) * complex(w, 0) * z
		for bj, hj := range h {
			a.mat.AddAt(bi, bj, cmplx.Conj(hi)*complex(w, 0)*hj)
		}
	}
}

// RunIterativeLinear runs the ILSE solver.
func RunIterativeLinear(yb *ybus.YBus, meas Measurements, opt Options, logger logrus.FieldLogger) (SolverOutput, error) {
	n := yb.N
	u := make([]complex128, n)
	for i := range u {
		u[i] = 1
	}

	unmeasured := unmeasuredBuses(n, &meas)

	relaxedWarned := false
	maxTotalIter := opt.MaxIter * 2
	for iter := 0; iter < maxTotalIter; iter++ {
		acc, err := newAccumulator(n)
		if err != nil {
			return SolverOutput{}, err
		}

		for bus, vs := range meas.VoltageSensors {
			acc.addRow(map[int]complex128{bus: 1}, vs.U, weightOf(vs.Variance))
		}
		for bus, ps := range meas.PowerSensors {
			h := make(map[int]complex128)
			for idx := yb.RowPtr[bus]; idx < yb.RowPtr[bus+1]; idx++ {
				h[yb.ColIdx[idx]] += yb.Values[idx]
			}
			pseudoI := cmplx.Conj(ps.S / u[bus])
			w := weightOf(0.5 * (ps.VarianceP + ps.VarianceQ))
			acc.addRow(h, pseudoI, w)
		}
		for fi, cm := range meas.CurrentSensorsFrom {
			addCurrentRow(acc, meas, fi, cm, u, true)
		}
		for ti, cm := range meas.CurrentSensorsTo {
			addCurrentRow(acc, meas, ti, cm, u, false)
		}
		for _, bus := range unmeasured {
			h := make(map[int]complex128)
			for idx := yb.RowPtr[bus]; idx < yb.RowPtr[bus+1]; idx++ {
				h[yb.ColIdx[idx]] += yb.Values[idx]
			}
			acc.addRow(h, 0, weightOf(ZeroInjectionVariance))
		}

		if err := acc.mat.Factor(); err != nil {
			return SolverOutput{}, err
		}
		next, err := acc.mat.Solve(acc.rhs)
		acc.mat.Destroy()
		if err != nil {
			return SolverOutput{}, err
		}

		maxDelta := 0.0
		for k := range next {
			if d := cmplx.Abs(next[k] - u[k]); d > maxDelta {
				maxDelta = d
			}
			if math.IsNaN(real(next[k])) {
				return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "NaN voltage at node %d on iteration %d", k, iter)
			}
		}
		if logger != nil {
			logger.Debugf("ilse iter=%d max_delta=%g", iter, maxDelta)
		}
		u = next

		tol := opt.ErrTol
		if iter >= opt.MaxIter {
			tol = opt.ErrTol * 100
			if !relaxedWarned {
				relaxedWarned = true
				if logger != nil {
					logger.Warnf("ilse did not converge in %d iterations, retrying with relaxed tolerance %g", opt.MaxIter, tol)
				}
			}
		}
		if maxDelta < tol {
			return SolverOutput{U: u, Iterations: iter}, nil
		}
	}
	return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "ilse did not converge in %d iterations even with relaxed tolerance", maxTotalIter)
}

// addCurrentRow adds the linear current-sensor row I = Yff*U_from +
// Yft*U_to (or the to-side equivalent) to the normal equations. branch
// is used directly as a branch index - current sensors are dim=1 only,
// so there is no phase to decode out of it.
func addCurrentRow(acc *accumulator, meas Measurements, branch int, cm CurrentMeasurement, u []complex128, fromSide bool) {
	buses, ok := meas.BranchBuses[branch]
	if !ok {
		return
	}
	from, to := buses[0], buses[1]
	var yff, yft complex128
	if fromSide {
		yff = meas.BranchYff[branch][0]
		yft = meas.BranchYft[branch][0]
	} else {
		yff = meas.BranchYtf[branch][0]
		yft = meas.BranchYtt[branch][0]
	}
	h := map[int]complex128{from: yff, to: yft}
	z := cm.I
	if cm.AngleType == params.AngleLocal {
		ref := from
		if !fromSide {
			ref = to
		}
		z = cm.I * cmplx.Rect(1, cmplx.Phase(u[ref]))
	}
	acc.addRow(h, z, weightOf(cm.Variance))
}

// RunNewtonRaphson runs the polar-form NRSE solver, covering voltage
// and power(injection) measurements - the nonlinear cases whose
// Jacobian genuinely depends on the current iterate. Current-sensor
// measurements, whose model is already linear in U, are handled by
// RunIterativeLinear instead.
func RunNewtonRaphson(yb *ybus.YBus, meas Measurements, slackBus int, opt Options, logger logrus.FieldLogger) (SolverOutput, error) {
	n := yb.N
	v := make([]float64, n)
	theta := make([]float64, n)
	for i := range v {
		v[i] = 1.0
	}

	unmeasured := unmeasuredBuses(n, &meas)

	u := func() []complex128 {
		out := make([]complex128, n)
		for i := range out {
			out[i] = cmplx.Rect(v[i], theta[i])
		}
		return out
	}

	relaxedWarned := false
	maxTotalIter := opt.MaxIter * 2
	for iter := 0; iter < maxTotalIter; iter++ {
		curU := u()
		i := yb.MulVec(curU)
		s := make([]complex128, n)
		for k := range s {
			s[k] = curU[k] * cmplx.Conj(i[k])
		}

		mat, err := sparselu.New(2 * n)
		if err != nil {
			return SolverOutput{}, err
		}
		rhs := make([]complex128, 2*n)

		addPair := func(rowP, rowQ, colTh, colV int, h, nN, m, l float64) {
			mat.AddAt(rowP, colTh, complex(h, 0))
			mat.AddAt(rowP, colV, complex(nN, 0))
			mat.AddAt(rowQ, colTh, complex(m, 0))
			mat.AddAt(rowQ, colV, complex(l, 0))
		}

		maxResidual := 0.0
		for bus, ps := range meas.PowerSensors {
			wP := weightOf(ps.VarianceP)
			wQ := weightOf(ps.VarianceQ)
			rP := real(ps.S) - real(s[bus])
			rQ := imag(ps.S) - imag(s[bus])
			if math.Abs(rP)*wP > maxResidual {
				maxResidual = math.Abs(rP) * wP
			}
			rhs[bus] += complex(wP*rP, 0)
			rhs[n+bus] += complex(wQ*rQ, 0)
			for idx := yb.RowPtr[bus]; idx < yb.RowPtr[bus+1]; idx++ {
				col := yb.ColIdx[idx]
				y := yb.Values[idx]
				g, bb := real(y), imag(y)
				if col == bus {
					p, q := real(s[bus]), imag(s[bus])
					h := -q - v[bus]*v[bus]*bb
					nN := p/v[bus] + v[bus]*g
					m := p - v[bus]*v[bus]*g
					l := q/v[bus] - v[bus]*bb
					addPair(bus, n+bus, col, n+col, wP*h, wP*nN, wQ*m, wQ*l)
					continue
				}
				thetaIK := theta[bus] - theta[col]
				sinIK, cosIK := math.Sincos(thetaIK)
				h := v[bus] * v[col] * (g*sinIK - bb*cosIK)
				nN := v[bus] * (g*cosIK + bb*sinIK)
				m := -v[bus] * v[col] * (g*cosIK + bb*sinIK)
				l := v[bus] * (g*sinIK - bb*cosIK)
				addPair(bus, n+bus, col, n+col, wP*h, wP*nN, wQ*m, wQ*l)
			}
		}
		for bus, vs := range meas.VoltageSensors {
			w := weightOf(vs.Variance)
			rMag := cmplx.Abs(vs.U) - v[bus]
			rAng := cmplx.Phase(vs.U) - theta[bus]
			mat.AddAt(bus, bus, complex(w, 0))
			mat.AddAt(n+bus, n+bus, complex(w, 0))
			rhs[bus] += complex(w*rAng, 0)
			rhs[n+bus] += complex(w*rMag, 0)
		}
		for _, bus := range unmeasured {
			w := weightOf(ZeroInjectionVariance)
			rP := -real(s[bus])
			rQ := -imag(s[bus])
			for idx := yb.RowPtr[bus]; idx < yb.RowPtr[bus+1]; idx++ {
				col := yb.ColIdx[idx]
				y := yb.Values[idx]
				g, bb := real(y), imag(y)
				if col == bus {
					p, q := real(s[bus]), imag(s[bus])
					h := -q - v[bus]*v[bus]*bb
					nN := p/v[bus] + v[bus]*g
					m := p - v[bus]*v[bus]*g
					l := q/v[bus] - v[bus]*bb
					addPair(bus, n+bus, col, n+col, w*h, w*nN, w*m, w*l)
					continue
				}
				thetaIK := theta[bus] - theta[col]
				sinIK, cosIK := math.Sincos(thetaIK)
				h := v[bus] * v[col] * (g*sinIK - bb*cosIK)
				nN := v[bus] * (g*cosIK + bb*sinIK)
				m := -v[bus] * v[col] * (g*cosIK + bb*sinIK)
				l := v[bus] * (g*sinIK - bb*cosIK)
				addPair(bus, n+bus, col, n+col, w*h, w*nN, w*m, w*l)
			}
			rhs[bus] += complex(w*rP, 0)
			rhs[n+bus] += complex(w*rQ, 0)
		}

		// Pin the global angle reference at the slack bus.
		mat.AddAt(slackBus, slackBus, 1e6)
		rhs[slackBus] = 0

		if logger != nil {
			logger.Debugf("nrse iter=%d max_weighted_residual=%g", iter, maxResidual)
		}
		tol := opt.ErrTol
		if iter >= opt.MaxIter {
			tol = opt.ErrTol * 100
			if !relaxedWarned {
				relaxedWarned = true
				if logger != nil {
					logger.Warnf("nrse did not converge in %d iterations, retrying with relaxed tolerance %g", opt.MaxIter, tol)
				}
			}
		}
		if maxResidual < tol && iter > 0 {
			mat.Destroy()
			return SolverOutput{U: curU, Iterations: iter}, nil
		}

		if err := mat.Factor(); err != nil {
			mat.Destroy()
			return SolverOutput{}, err
		}
		dx, err := mat.Solve(rhs)
		mat.Destroy()
		if err != nil {
			return SolverOutput{}, err
		}
		for k := 0; k < n; k++ {
			theta[k] += real(dx[k])
			v[k] += real(dx[n+k])
		}
	}
	return SolverOutput{}, pgerr.New(pgerr.IterationDiverge, "nrse did not converge in %d iterations even with relaxed tolerance", maxTotalIter)
}
