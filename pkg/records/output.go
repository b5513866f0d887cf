package records

import (
	"math/cmplx"

	"powergrid/pkg/params"
	"powergrid/pkg/phasor"
)

// NodeOutputFromVoltage builds the per-node result from a solved bus
// voltage u (per-unit) and its net injection pInjection/qInjection.
// ratedVoltageV converts the per-unit magnitude to volts; pass 0 to
// leave UVolt unset (NaN).
func NodeOutputFromVoltage(id int32, u complex128, ratedVoltageV, pInjection, qInjection float64) NodeOutput {
	uVolt := NaN
	if ratedVoltageV != 0 {
		uVolt = cmplx.Abs(u) * ratedVoltageV
	}
	return NodeOutput{
		ID:         id,
		UPu:        cmplx.Abs(u),
		UAngle:     cmplx.Phase(u),
		UVolt:      uVolt,
		PInjection: pInjection,
		QInjection: qInjection,
	}
}

// BranchOutputFromFlow derives the per-branch result from the solved
// from/to bus voltages and the branch's own calculation parameter:
// terminal currents from the 2x2 admittance block, from/to power by
// S = U * conj(I), and loading as the worst-side current ratio to
// ratedCurrentA (0 leaves Loading at 0, the "no rating supplied" case).
func BranchOutputFromFlow(id int32, uFrom, uTo complex128, bp params.BranchParam, ratedCurrentA float64) BranchOutput {
	iFrom := bp.Yff[0]*uFrom + bp.Yft[0]*uTo
	iTo := bp.Ytf[0]*uFrom + bp.Ytt[0]*uTo
	sFrom := uFrom * cmplx.Conj(iFrom)
	sTo := uTo * cmplx.Conj(iTo)

	out := BranchOutput{
		ID:    id,
		PFrom: real(sFrom), QFrom: imag(sFrom), IFrom: cmplx.Abs(iFrom),
		PTo: real(sTo), QTo: imag(sTo), ITo: cmplx.Abs(iTo),
	}
	if ratedCurrentA > 0 {
		worst := out.IFrom
		if out.ITo > worst {
			worst = out.ITo
		}
		out.Loading = worst / ratedCurrentA
	}
	return out
}

// ApplianceOutputFromInjection derives the per-appliance result from
// its solved power injection s and its terminal bus voltage uBus: the
// implied current magnitude I = |S/U|, and power factor cos(angle(S)).
func ApplianceOutputFromInjection(id int32, s, uBus complex128) ApplianceOutput {
	out := ApplianceOutput{ID: id, P: real(s), Q: imag(s)}
	if cmplx.Abs(uBus) > 0 {
		out.I = cmplx.Abs(s / uBus)
	}
	if mag := cmplx.Abs(s); mag > 0 {
		out.PowerFactor = real(s) / mag
	}
	return out
}

// SensorOutputFromResidual derives a sensor's residual (measured minus
// computed, magnitude and angle) - the quantity state-estimation
// reports per sensor to let a caller judge measurement quality.
func SensorOutputFromResidual(id int32, measured, computed complex128) SensorOutput {
	r := measured - computed
	return SensorOutput{ID: id, Residual: cmplx.Abs(r), ResidualAngle: cmplx.Phase(r)}
}

// FaultOutputFromCurrent derives the per-fault result from the
// solved phase fault current: magnitude and angle of every phase. A
// phase the fault does not involve carries zero current (the
// short-circuit solver zeroes it) and reports magnitude 0, not NaN.
func FaultOutputFromCurrent(id int32, i phasor.Vec3) FaultOutput {
	out := FaultOutput{ID: id}
	for p := 0; p < 3; p++ {
		out.IMagnitude[p] = cmplx.Abs(i[p])
		out.IAngle[p] = cmplx.Phase(i[p])
	}
	return out
}
