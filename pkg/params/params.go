// Package params reduces each energized grid component to its
// contribution to the Y-bus / injection vector: its calculation
// parameter. Every CalcXxx function here is a pure function of its
// context - no component holds mutable solver state.
package params

import (
	"math"
	"math/cmplx"

	"powergrid/internal/pgconst"
	"powergrid/pkg/pgerr"
	"powergrid/pkg/phasor"
)

// BranchParam is the 2x2 block of admittance Blocks relating from/to
// terminal currents to from/to voltages: [I_f;I_t] = [[Yff,Yft],[Ytf,Ytt]] [U_f;U_t].
type BranchParam struct {
	Dim                  int
	Yff, Yft, Ytf, Ytt   phasor.Block
}

// ShuntParam is a single admittance Block contributing to a Y-bus diagonal.
type ShuntParam struct {
	Dim int
	Y   phasor.Block
}

// SourceParam is the positive- and zero-sequence internal admittance of
// a source, used by the short-circuit solver (not folded into Y-bus).
type SourceParam struct {
	Y1, Y0 complex128
}

// FaultType enumerates the short-circuit fault types.
type FaultType int

const (
	FaultThreePhase FaultType = iota
	FaultSinglePhaseToGround
	FaultTwoPhase
	FaultTwoPhaseToGround
)

// FaultPhase enumerates which phase(s) participate in a fault.
type FaultPhase int

const (
	PhaseABC FaultPhase = iota
	PhaseA
	PhaseB
	PhaseC
	PhaseAB
	PhaseBC
	PhaseAC
)

// FaultParam is the fault admittance, type and phase. Validity between
// Type and Phase is checked at construction (see NewFaultParam).
type FaultParam struct {
	Y     complex128 // 1/Z_fault; infinite impedance is represented as Y == 0
	Type  FaultType
	Phase FaultPhase
}

// NewFaultParam validates the fault-type/fault-phase compatibility
// matrix and computes Y = 1/Z_fault. zFault == 0 is allowed and
// produces a direct short (Y with very large magnitude is avoided;
// callers special-case Y==math.Inf via IsDirectShort). zFault at
// infinity is also allowed and produces the open-boundary "no fault"
// case (Y == 0, callers special-case via NoFault); both limits are
// handled directly rather than by dividing by zero or infinity, since
// Go's complex division of those produces NaN, not a clean Inf/0.
func NewFaultParam(zFault complex128, ftype FaultType, phase FaultPhase) (FaultParam, error) {
	ok := false
	switch ftype {
	case FaultThreePhase:
		ok = phase == PhaseABC
	case FaultSinglePhaseToGround:
		ok = phase == PhaseA || phase == PhaseB || phase == PhaseC
	case FaultTwoPhase, FaultTwoPhaseToGround:
		ok = phase == PhaseAB || phase == PhaseBC || phase == PhaseAC
	default:
		return FaultParam{}, pgerr.New(pgerr.InvalidShortCircuitType, "unknown fault type %d", ftype)
	}
	if !ok {
		return FaultParam{}, pgerr.New(pgerr.InvalidShortCircuitPhaseOrType, "fault type %d incompatible with phase %d", ftype, phase)
	}

	fp := FaultParam{Type: ftype, Phase: phase}
	switch {
	case zFault == 0:
		fp.Y = cmplx.Inf()
	case cmplx.IsInf(zFault):
		fp.Y = 0
	default:
		fp.Y = 1 / zFault
	}
	return fp, nil
}

// IsDirectShort reports whether the fault admittance is the Z_fault=0
// limit case, which short-circuit must handle by limit-taking rather
// than by dividing.
func (f FaultParam) IsDirectShort() bool {
	return cmplx.IsInf(f.Y)
}

// NoFault reports whether the fault admittance is the Z_fault=infinity
// limit case: an open boundary condition with no fault current at all.
// This is the other limit IsDirectShort is not: Y==0 rather than Y==Inf.
func (f FaultParam) NoFault() bool {
	return f.Y == 0
}

// PowerSensorParam is a power-measurement record: complex measured
// value plus independent P/Q variances.
type PowerSensorParam struct {
	S          complex128
	VarianceP  float64
	VarianceQ  float64
}

// VoltageSensorParam is a voltage-measurement record.
type VoltageSensorParam struct {
	U        complex128
	Variance float64
}

// AngleMeasureType distinguishes a current sensor's phase reference.
type AngleMeasureType int

const (
	AngleGlobal AngleMeasureType = iota
	AngleLocal
)

// CurrentSensorParam is a current-measurement record.
type CurrentSensorParam struct {
	I         complex128
	Variance  float64
	AngleType AngleMeasureType
}

// --- Branch reductions ---

// CalcBranchSym reduces a symmetric two-port (series admittance ys,
// total shunt admittance yh, off-nominal tap k, phase shift theta) to
// its 2x2 admittance block, honouring terminal-disconnection.
func CalcBranchSym(ys, yh complex128, k, theta float64, fromConnected, toConnected bool) BranchParam {
	bp := BranchParam{Dim: 1, Yff: phasor.NewBlock(1), Yft: phasor.NewBlock(1), Ytf: phasor.NewBlock(1), Ytt: phasor.NewBlock(1)}

	switch {
	case fromConnected && toConnected:
		ytt := ys + yh/2
		yff := ytt / complex(k*k, 0)
		yft := -ys / complex(k, 0) / cmplx.Rect(1, theta)
		ytf := -ys / complex(k, 0) / cmplx.Rect(1, -theta)
		bp.Yff[0], bp.Yft[0], bp.Ytf[0], bp.Ytt[0] = yff, yft, ytf, ytt

	case fromConnected || toConnected:
		var yBr complex128
		if cmplx.Abs(yh) < pgconst.Tolerance {
			yBr = 0
		} else {
			yBr = yh/2 + 1/(1/ys+2/yh)
		}
		if fromConnected {
			bp.Yff[0] = yBr
		} else {
			bp.Ytt[0] = yBr
		}

	default:
		// neither terminal connected: all blocks remain zero
	}

	return bp
}

// CombineSequenceToPhase folds positive- and zero-sequence admittance
// into the phase-domain 3x3 tensor via
// Y_abc = (2*Y1+Y0)/3 on the diagonal, (Y0-Y1)/3 off-diagonal.
func CombineSequenceToPhase(y1, y0 complex128) phasor.Tensor3 {
	diag := (2*y1 + y0) / 3
	off := (y0 - y1) / 3
	return phasor.SelfMutual3(diag, off)
}

// CalcBranchAsym reduces an asymmetric two-port given its positive- and
// zero-sequence series/shunt admittances, combining them into phase-
// domain 3x3 blocks before applying the same connectivity logic as
// CalcBranchSym.
func CalcBranchAsym(ys1, ys0, yh1, yh0 complex128, k, theta float64, fromConnected, toConnected bool) BranchParam {
	ysAbc := CombineSequenceToPhase(ys1, ys0)
	yhAbc := CombineSequenceToPhase(yh1, yh0)

	bp := BranchParam{Dim: 3, Yff: phasor.NewBlock(3), Yft: phasor.NewBlock(3), Ytf: phasor.NewBlock(3), Ytt: phasor.NewBlock(3)}

	switch {
	case fromConnected && toConnected:
		ytt := ysAbc.Add(yhAbc.Scale(0.5))
		yff := ytt.Scale(complex(1/(k*k), 0))
		rot := cmplx.Rect(1, theta)
		yft := ysAbc.Scale(-1 / (complex(k, 0) * rot))
		ytf := ysAbc.Scale(-1 / (complex(k, 0) * cmplx.Conj(rot)))
		bp.Yff, bp.Yft, bp.Ytf, bp.Ytt = yff.Block(), yft.Block(), ytf.Block(), ytt.Block()

	case fromConnected || toConnected:
		// Thevenin reduction; mutual coupling through yh is folded in via
		// the tensor inverse identity below rather than per-phase.
		var yBr phasor.Tensor3
		if tensorMaxAbs(yhAbc) < pgconst.Tolerance {
			yBr = phasor.Tensor3{}
		} else {
			inv, err := invertTensorSum(ysAbc, yhAbc)
			if err == nil {
				yBr = yhAbc.Scale(0.5).Add(inv)
			}
		}
		if fromConnected {
			bp.Yff = yBr.Block()
		} else {
			bp.Ytt = yBr.Block()
		}

	default:
	}

	return bp
}

// tensorMaxAbs is the largest element magnitude in a Tensor3, used for
// the "shunt admittance below tolerance" open-terminal test.
func tensorMaxAbs(t phasor.Tensor3) float64 {
	max := 0.0
	for i := range 3 {
		for j := range 3 {
			if a := cmplx.Abs(t[i][j]); a > max {
				max = a
			}
		}
	}
	return max
}

// invertTensorSum computes (ys^-1 + 2*yh^-1)^-1, the tensor analogue of
// 1/(1/y_s + 2/y_h).
func invertTensorSum(ys, yh phasor.Tensor3) (phasor.Tensor3, error) {
	ysInv, err := ys.Inverse()
	if err != nil {
		return phasor.Tensor3{}, err
	}
	yhInv, err := yh.Inverse()
	if err != nil {
		return phasor.Tensor3{}, err
	}
	sum := ysInv.Add(yhInv.Scale(2))
	return sum.Inverse()
}

// --- Transformer tap / clock helpers ---

// TapAdjustImpedance returns x_nom + (pos-nom)*delta, where delta is
// taken from the max side or min side of nom depending on which side
// pos falls on.
func TapAdjustImpedance(pos, min, max, nom, xNom, xMin, xMax float64) float64 {
	if pos >= nom {
		if max == nom {
			return xNom
		}
		delta := (xMax - xNom) / (max - nom)
		return xNom + (pos-nom)*delta
	}
	if min == nom {
		return xNom
	}
	delta := (xMin - xNom) / (min - nom)
	return xNom + (pos-nom)*delta
}

// ValidClockNumber checks the clock-number validity rule: integer in
// [0,12], even iff both windings are wye-family, odd otherwise.
func ValidClockNumber(clock int, bothWye bool) error {
	if clock < 0 || clock > 12 {
		return pgerr.New(pgerr.InvalidTransformerClock, "clock number %d out of range [0,12]", clock)
	}
	isEven := clock%2 == 0
	if isEven != bothWye {
		return pgerr.New(pgerr.InvalidTransformerClock, "clock number %d parity incompatible with winding configuration", clock)
	}
	return nil
}

// ThreeWindingSplit redistributes the pairwise short-circuit voltages
// of a three-winding transformer (uk_12, uk_13, uk_23) into the three
// two-winding equivalents meeting at the fictitious star point, via
// the wye-delta identity uk_T1 = (uk_12 + uk_13 - uk_23)/2 and
// permutations.
func ThreeWindingSplit(uk12, uk13, uk23 float64) (uk1, uk2, uk3 float64) {
	uk1 = 0.5 * (uk12 + uk13 - uk23)
	uk2 = 0.5 * (uk12 + uk23 - uk13)
	uk3 = 0.5 * (uk13 + uk23 - uk12)
	return
}

// LinkAdmittance is the fixed series admittance (per unit) used to
// model a Link: a zero-impedance tie between two buses, represented as
// an ordinary branch with no tap, no phase shift and no shunt, series
// admittance large enough that the voltage drop across it is
// negligible at any realistic load current.
const LinkAdmittance = 1e6

// CalcGenericBranch reduces a branch parameterized directly by its
// series and shunt admittance components (r1, x1, g1, b1, already in
// per-unit) with no transformer tap or phase shift, i.e. CalcBranchSym
// with k=1, theta=0.
func CalcGenericBranch(r1, x1, g1, b1 float64, fromConnected, toConnected bool) BranchParam {
	ys := 1 / complex(r1, x1)
	yh := complex(g1, b1)
	return CalcBranchSym(ys, yh, 1, 0, fromConnected, toConnected)
}

// CalcLink reduces a Link, a dedicated zero-impedance tie component, to
// its 2x2 admittance block: series admittance LinkAdmittance, no shunt,
// no tap or phase shift.
func CalcLink(fromConnected, toConnected bool) BranchParam {
	return CalcBranchSym(complex(LinkAdmittance, 0), 0, 1, 0, fromConnected, toConnected)
}

// --- Line parameter assembly ---

// LineSeriesAdmittance computes y_s = 1/(r1+j*x1) / base_y.
func LineSeriesAdmittance(r1, x1, baseY float64) complex128 {
	return 1 / complex(r1, x1) / complex(baseY, 0)
}

// LineShuntAdmittance computes y_h = 2*pi*f*c1*(tan+j) / base_y, where
// tan is the dielectric loss tangent.
func LineShuntAdmittance(f, c1, tanDelta, baseY float64) complex128 {
	return complex(2*math.Pi*f*c1, 0) * complex(tanDelta, 1) / complex(baseY, 0)
}

// --- Source internal admittance ---

// SourceVoltageScale selects the IEC 60909 c_min/c_max source-voltage
// scaling factor: 1.1 for c_max, and for c_min 0.95 when the rated
// voltage is at or below 1kV, else 1.0.
func SourceVoltageScale(cMax bool, ratedVoltageV float64) float64 {
	if cMax {
		return 1.1
	}
	if ratedVoltageV <= 1000 {
		return 0.95
	}
	return 1.0
}

// CalcSourceParam computes the internal admittance of a source from
// its rated short-circuit capacity sk (VA), R/X ratio, and the ratio of
// zero- to positive-sequence impedance.
func CalcSourceParam(sk, rxRatio, z0z1Ratio, baseY float64) SourceParam {
	zMag1 := baseY / sk // |Z1| in per-unit given sk already in same base as baseY
	x1 := zMag1 / math.Sqrt(1+rxRatio*rxRatio)
	r1 := rxRatio * x1
	z1 := complex(r1, x1)
	y1 := 1 / z1
	z0 := z1 * complex(z0z1Ratio, 0)
	y0 := 1 / z0
	return SourceParam{Y1: y1, Y0: y0}
}

// --- Load / generator injection ---

// LoadGenType enumerates the three behavioural classes.
type LoadGenType int

const (
	ConstPQ LoadGenType = iota
	ConstY
	ConstI
)

// Injection computes the apparent-power injection of a load/gen given
// its specified power s (sign convention: generators positive, loads
// negative, already applied by the caller) and the current bus
// voltage magnitude/phasor u.
func Injection(t LoadGenType, s complex128, u complex128) complex128 {
	switch t {
	case ConstPQ:
		return s
	case ConstY:
		return s * complex(cmplx.Abs(u)*cmplx.Abs(u), 0)
	case ConstI:
		return s * complex(cmplx.Abs(u), 0)
	default:
		return complex(math.NaN(), math.NaN())
	}
}

// --- Shunt ---

// CalcShuntParam builds a ShuntParam directly from admittance g+jb.
func CalcShuntParam(g, b float64, dim int) ShuntParam {
	y := complex(g, b)
	if dim == 1 {
		return ShuntParam{Dim: 1, Y: phasor.ScalarBlock(y)}
	}
	return ShuntParam{Dim: 3, Y: phasor.Diag3(y).Block()}
}
