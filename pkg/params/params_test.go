package params_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/pkg/params"
)

func TestCalcBranchSymBothConnected(t *testing.T) {
	ys := complex(0, -10) // pure susceptance series admittance
	yh := complex(0, 0.2)
	bp := params.CalcBranchSym(ys, yh, 1.0, 0.0, true, true)
	require.Equal(t, 1, bp.Dim)
	// With unity tap and zero shift, Yft == Ytf == -ys.
	require.InDelta(t, real(-ys), real(bp.Yft[0]), 1e-9)
	require.InDelta(t, imag(-ys), imag(bp.Yft[0]), 1e-9)
	require.Equal(t, bp.Yft[0], bp.Ytf[0])
}

func TestCalcBranchSymOneSideOpen(t *testing.T) {
	ys := complex(1, -10)
	yh := complex(0.01, 0.2)
	bp := params.CalcBranchSym(ys, yh, 1.0, 0.0, true, false)
	require.NotZero(t, bp.Yff[0])
	require.Zero(t, bp.Ytt[0])
	require.Zero(t, bp.Yft[0])
	require.Zero(t, bp.Ytf[0])
}

func TestCalcBranchSymNeitherConnected(t *testing.T) {
	bp := params.CalcBranchSym(complex(1, -10), complex(0.01, 0.2), 1.0, 0.0, false, false)
	require.Zero(t, bp.Yff[0])
	require.Zero(t, bp.Ytt[0])
}

func TestCalcGenericBranchMatchesBranchSymWithUnityTap(t *testing.T) {
	r1, x1, g1, b1 := 0.01, 0.1, 0.001, 0.02
	generic := params.CalcGenericBranch(r1, x1, g1, b1, true, true)

	ys := 1 / complex(r1, x1)
	yh := complex(g1, b1)
	equivalent := params.CalcBranchSym(ys, yh, 1, 0, true, true)

	require.Equal(t, equivalent.Yff, generic.Yff)
	require.Equal(t, equivalent.Yft, generic.Yft)
	require.Equal(t, equivalent.Ytf, generic.Ytf)
	require.Equal(t, equivalent.Ytt, generic.Ytt)
}

func TestCalcLinkIsNearInfiniteAdmittance(t *testing.T) {
	link := params.CalcLink(true, true)
	require.InDelta(t, params.LinkAdmittance, real(link.Ytt[0]), 1e-6)
	require.Zero(t, imag(link.Ytt[0]))
}

func TestCalcLinkOneSideOpenBehavesLikeBranchSym(t *testing.T) {
	link := params.CalcLink(true, false)
	// A link has no shunt admittance, so the open-terminal Thevenin
	// reduction yields zero on the live side too.
	require.Zero(t, link.Yff[0])
	require.Zero(t, link.Ytt[0])
	require.Zero(t, link.Yft[0])
	require.Zero(t, link.Ytf[0])
}

func TestNewFaultParamCompatibilityMatrix(t *testing.T) {
	_, err := params.NewFaultParam(0, params.FaultThreePhase, params.PhaseABC)
	require.NoError(t, err)

	_, err = params.NewFaultParam(0, params.FaultThreePhase, params.PhaseA)
	require.Error(t, err)

	_, err = params.NewFaultParam(0, params.FaultSinglePhaseToGround, params.PhaseB)
	require.NoError(t, err)

	_, err = params.NewFaultParam(0, params.FaultTwoPhase, params.PhaseAB)
	require.NoError(t, err)
}

func TestFaultParamDirectShort(t *testing.T) {
	fp, err := params.NewFaultParam(0, params.FaultThreePhase, params.PhaseABC)
	require.NoError(t, err)
	require.True(t, fp.IsDirectShort())

	fp2, err := params.NewFaultParam(complex(1, 0), params.FaultThreePhase, params.PhaseABC)
	require.NoError(t, err)
	require.False(t, fp2.IsDirectShort())
	require.InDelta(t, 1.0, real(fp2.Y), 1e-9)
}

func TestValidClockNumber(t *testing.T) {
	require.NoError(t, params.ValidClockNumber(0, true))
	require.NoError(t, params.ValidClockNumber(11, false))
	require.Error(t, params.ValidClockNumber(1, true))
	require.Error(t, params.ValidClockNumber(13, true))
}

func TestThreeWindingSplit(t *testing.T) {
	uk12, uk13, uk23 := 0.1, 0.12, 0.08
	uk1, uk2, uk3 := params.ThreeWindingSplit(uk12, uk13, uk23)
	require.InDelta(t, uk12, uk1+uk2, 1e-9)
	require.InDelta(t, uk13, uk1+uk3, 1e-9)
	require.InDelta(t, uk23, uk2+uk3, 1e-9)
}

func TestInjectionTypes(t *testing.T) {
	s := complex(1, 0.5)
	u := complex(0.9, 0)

	require.Equal(t, s, params.Injection(params.ConstPQ, s, u))
	require.InDelta(t, real(s)*0.81, real(params.Injection(params.ConstY, s, u)), 1e-9)
	require.InDelta(t, real(s)*0.9, real(params.Injection(params.ConstI, s, u)), 1e-9)
}

func TestCombineSequenceToPhase(t *testing.T) {
	y1 := complex(1, -5)
	y0 := complex(0.5, -2)
	tensor := params.CombineSequenceToPhase(y1, y0)
	expectedDiag := (2*y1 + y0) / 3
	require.InDelta(t, real(expectedDiag), real(tensor[0][0]), 1e-9)
	require.InDelta(t, imag(expectedDiag), imag(tensor[0][0]), 1e-9)
}

func TestSourceVoltageScale(t *testing.T) {
	require.InDelta(t, 1.1, params.SourceVoltageScale(true, 400), 1e-9)
	require.InDelta(t, 0.95, params.SourceVoltageScale(false, 400), 1e-9)
	require.InDelta(t, 1.0, params.SourceVoltageScale(false, 110000), 1e-9)
}

func TestCalcSourceParam(t *testing.T) {
	sp := params.CalcSourceParam(1e9, 0.1, 1.0, 1e6)
	require.False(t, cmplx.IsNaN(sp.Y1))
	require.False(t, cmplx.IsNaN(sp.Y0))
}
