// Package shortcircuit implements a sequence-component short-circuit
// solver: positive/negative/zero-sequence Thevenin admittances at the
// fault bus are combined per IEC 60909 fault-type formulas into
// sequence fault currents, then superposed back onto a flat (c*rated)
// prefault voltage profile to produce post-fault phase voltages and the
// phase fault current. Branch and source currents are not computed.
//
// The negative-sequence network is assumed identical to the positive-
// sequence network (Z2 = Z1), the standard simplification for static
// apparatus with no rotating machines.
package shortcircuit

import (
	"math/cmplx"

	"github.com/sirupsen/logrus"

	"powergrid/pkg/params"
	"powergrid/pkg/pgerr"
	"powergrid/pkg/phasor"
	"powergrid/pkg/sparselu"
	"powergrid/pkg/ybus"
)

// Networks carries the two single-phase-equivalent (dim=1) admittance
// networks a fault calculation needs: positive/negative sequence (Y1,
// shared with Y2) and zero sequence (Y0). Source Thevenin admittances
// must already be stamped into each diagonal by the caller (see
// StampSourceAdmittance) since ybus.Refresh deliberately leaves sources
// out of the branch/shunt-only Y-bus.
type Networks struct {
	Y1 *ybus.YBus
	Y0 *ybus.YBus
}

// StampSourceAdmittance adds a source's sequence Thevenin admittance
// directly onto a network's diagonal entry at busFlat. Call once per
// energized source, for both the Y1 and Y0 networks, before solving.
func StampSourceAdmittance(yb *ybus.YBus, busFlat int, y complex128) {
	for idx := yb.RowPtr[busFlat]; idx < yb.RowPtr[busFlat+1]; idx++ {
		if yb.ColIdx[idx] == busFlat {
			yb.Values[idx] += y
			return
		}
	}
}

// Result is the post-fault solution: per-bus phase voltages (a, b, c as
// a Vec3) and the phase fault current at the fault bus.
type Result struct {
	U            []phasor.Vec3
	FaultCurrent phasor.Vec3
}

// Run solves one short circuit at faultBus (0-based index into the Y1/Y0
// networks, which must be single-phase-equivalent dim=1 networks) with
// the given fault parameter and prefault voltage scale c (see
// params.SourceVoltageScale), per the IEC 60909 fault-type table.
// Voltages and the fault current are returned in per unit; Run does not
// convert them to volts or amperes.
func Run(nets Networks, faultBus int, fault params.FaultParam, c float64, logger logrus.FieldLogger) (Result, error) {
	if nets.Y1.Dim != 1 || nets.Y0.Dim != 1 {
		return Result{}, pgerr.New(pgerr.NotImplemented, "short circuit requires single-phase-equivalent (dim=1) sequence networks")
	}
	n := nets.Y1.N

	if fault.NoFault() {
		return noFaultResult(n, complex(c, 0)), nil
	}

	z1col, err := theveninColumn(nets.Y1, faultBus)
	if err != nil {
		return Result{}, err
	}
	z0col, err := theveninColumn(nets.Y0, faultBus)
	if err != nil {
		return Result{}, err
	}
	z2col := z1col // Z2 = Z1, see package doc.

	z1 := z1col[faultBus]
	z2 := z2col[faultBus]
	z0 := z0col[faultBus]
	zf := faultImpedance(fault)

	un := complex(c, 0)

	var i1, i2, i0 complex128
	switch fault.Type {
	case params.FaultThreePhase:
		i1 = un / (z1 + zf)
		i2, i0 = 0, 0
	case params.FaultSinglePhaseToGround:
		i1 = un / (z1 + z2 + z0 + 3*zf)
		i2, i0 = i1, i1
	case params.FaultTwoPhase:
		i1 = un / (z1 + z2 + zf)
		i2 = -i1
		i0 = 0
	case params.FaultTwoPhaseToGround:
		zpar := (z2 + zf) * (z0 + zf) / (z2 + zf + z0 + zf)
		i1 = un / (z1 + zf + zpar)
		v1 := un - i1*z1
		i2 = -v1 / (z2 + zf)
		i0 = -v1 / (z0 + zf)
	default:
		return Result{}, pgerr.New(pgerr.InvalidShortCircuitType, "unhandled fault type %v", fault.Type)
	}

	if logger != nil {
		logger.Debugf("short circuit bus=%d type=%v i1=%v i2=%v i0=%v", faultBus, fault.Type, i1, i2, i0)
	}

	// phasor.Vec3 in sequence context is ordered (zero, positive, negative).
	uSeq := make([]phasor.Vec3, n)
	for k := 0; k < n; k++ {
		du0 := -z0col[k] * i0
		du1 := -z1col[k] * i1
		du2 := -z2col[k] * i2
		pre := phasor.Vec3{0, un, 0}
		uSeq[k] = pre.Add(phasor.Vec3{du0, du1, du2})
	}

	// The formulas above fault phase a (single-phase) or spare phase a
	// (two-phase); other fault phases are reached by relabeling phases.
	shift, rot := 0, complex(1, 0)
	switch fault.Phase {
	case params.PhaseB, params.PhaseAC:
		shift, rot = 1, phasor.A2
	case params.PhaseC, params.PhaseAB:
		shift, rot = 2, phasor.A
	}
	relabel := func(v phasor.Vec3) phasor.Vec3 {
		return phasor.Vec3{v[(3-shift)%3] * rot, v[(4-shift)%3] * rot, v[(5-shift)%3] * rot}
	}

	u := make([]phasor.Vec3, n)
	for k := range uSeq {
		u[k] = relabel(phasor.SeqToPhase(uSeq[k]))
	}

	iFaultSeq := phasor.Vec3{i0, i1, i2}
	iFaultPhase := relabel(phasor.SeqToPhase(iFaultSeq))
	iFaultPhase = maskFaultCurrent(iFaultPhase, fault.Phase)

	return Result{U: u, FaultCurrent: iFaultPhase}, nil
}

func faultImpedance(f params.FaultParam) complex128 {
	if f.IsDirectShort() {
		return 0
	}
	return 1 / f.Y
}

// noFaultResult is the Z_fault=infinity boundary condition: an open
// fault draws no current, so every bus simply sits at the flat
// prefault voltage profile (c*rated) and the reported fault current is
// zero.
func noFaultResult(n int, un complex128) Result {
	u := make([]phasor.Vec3, n)
	for k := range u {
		u[k] = phasor.SeqToPhase(phasor.Vec3{0, un, 0})
	}
	return Result{U: u, FaultCurrent: phasor.Vec3{0, 0, 0}}
}

// theveninColumn solves Y*x = e_faultBus, giving the faultBus-th column
// of Y^-1 - the Thevenin self/mutual impedances needed at every bus.
func theveninColumn(yb *ybus.YBus, faultBus int) ([]complex128, error) {
	mat, err := sparselu.FromCSR(yb.N, yb.RowPtr, yb.ColIdx, yb.Values)
	if err != nil {
		return nil, err
	}
	defer mat.Destroy()
	if err := mat.Factor(); err != nil {
		return nil, err
	}
	rhs := make([]complex128, yb.N)
	rhs[faultBus] = 1
	return mat.Solve(rhs)
}

// maskFaultCurrent zeroes the phase-current components the fault type
// does not actually involve, so a single-phase-to-ground fault on
// phase B, say, reports current only on phase B.
func maskFaultCurrent(i phasor.Vec3, phase params.FaultPhase) phasor.Vec3 {
	keep := [3]bool{true, true, true}
	switch phase {
	case params.PhaseA:
		keep = [3]bool{true, false, false}
	case params.PhaseB:
		keep = [3]bool{false, true, false}
	case params.PhaseC:
		keep = [3]bool{false, false, true}
	case params.PhaseAB:
		keep = [3]bool{true, true, false}
	case params.PhaseBC:
		keep = [3]bool{false, true, true}
	case params.PhaseAC:
		keep = [3]bool{true, false, true}
	case params.PhaseABC:
		keep = [3]bool{true, true, true}
	}
	out := i
	for p := 0; p < 3; p++ {
		if !keep[p] {
			out[p] = 0
		}
	}
	if cmplx.IsNaN(out[0]) && cmplx.IsNaN(out[1]) && cmplx.IsNaN(out[2]) {
		return i
	}
	return out
}
