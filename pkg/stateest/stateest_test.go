package stateest_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/pkg/params"
	"powergrid/pkg/stateest"
	"powergrid/pkg/topology"
	"powergrid/pkg/ybus"
)

func twoBusYBus(t *testing.T) *ybus.YBus {
	t.Helper()
	topo := &topology.Topology{
		NBus:         2,
		SlackBus:     0,
		PhaseShift:   make([]float64, 2),
		BranchBusIdx: []topology.BranchEndpoint{{From: 0, To: 1}},
	}
	yb, err := ybus.Build(topo, 1)
	require.NoError(t, err)
	bp := params.CalcBranchSym(1/complex(0.02, 0), 0, 1.0, 0.0, true, true)
	require.NoError(t, yb.Refresh([]params.BranchParam{bp}, []bool{true}, nil, nil))
	return yb
}

func TestILSESingleVoltageSensorPropagates(t *testing.T) {
	yb := twoBusYBus(t)
	meas := stateest.Measurements{
		VoltageSensors: map[int]params.VoltageSensorParam{
			0: {U: complex(1.0, 0), Variance: 1.0},
		},
	}
	out, err := stateest.RunIterativeLinear(yb, meas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)
	require.InDelta(t, 1.0, cmplx.Abs(out.U[0]), 1e-6)
	require.InDelta(t, 1.0, cmplx.Abs(out.U[1]), 1e-6)
}

func TestILSEZeroVarianceOverridesConflictingPowerMeasurement(t *testing.T) {
	yb := twoBusYBus(t)
	meas := stateest.Measurements{
		VoltageSensors: map[int]params.VoltageSensorParam{
			0: {U: complex(1.0, 0), Variance: 0},
		},
		PowerSensors: map[int]params.PowerSensorParam{
			0: {S: complex(5, 5), VarianceP: 1, VarianceQ: 1},
		},
	}
	out, err := stateest.RunIterativeLinear(yb, meas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)
	require.InDelta(t, 1.0, cmplx.Abs(out.U[0]), 1e-4)
	require.InDelta(t, 0.0, cmplx.Phase(out.U[0]), 1e-4)
}

// branchMeasurementFields returns the BranchBuses/BranchYff/... entries
// for twoBusYBus's single branch (from=bus0, to=bus1, both dim=1).
func branchMeasurementFields() (map[int][2]int, map[int][]complex128, map[int][]complex128, map[int][]complex128, map[int][]complex128) {
	ys := 1 / complex(0.02, 0)
	bp := params.CalcBranchSym(ys, 0, 1.0, 0.0, true, true)
	return map[int][2]int{0: {0, 1}},
		map[int][]complex128{0: {bp.Yff[0]}},
		map[int][]complex128{0: {bp.Yft[0]}},
		map[int][]complex128{0: {bp.Ytf[0]}},
		map[int][]complex128{0: {bp.Ytt[0]}}
}

func TestILSECurrentSensorGlobalAngleMatchesPowerBaseline(t *testing.T) {
	yb := twoBusYBus(t)
	buses, yff, yft, ytf, ytt := branchMeasurementFields()

	baselineMeas := stateest.Measurements{
		VoltageSensors: map[int]params.VoltageSensorParam{
			0: {U: complex(1.0, 0), Variance: 1e-6},
		},
		PowerSensors: map[int]params.PowerSensorParam{
			1: {S: complex(-0.3, -0.1), VarianceP: 1e-6, VarianceQ: 1e-6},
		},
		BranchBuses: buses, BranchYff: yff, BranchYft: yft, BranchYtf: ytf, BranchYtt: ytt,
	}
	baseline, err := stateest.RunIterativeLinear(yb, baselineMeas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)

	trueIFrom := yff[0][0]*baseline.U[0] + yft[0][0]*baseline.U[1]

	// Current sensor is consistent with the baseline's own voltages and
	// power sensor, so adding it should leave the solution unchanged -
	// this is what exercises the AngleGlobal conversion path without
	// leaving bus1's real load to be contradicted by the implicit
	// zero-injection pseudo-measurement (which only ever looks at
	// VoltageSensors/PowerSensors coverage, never current sensors).
	meas := baselineMeas
	meas.CurrentSensorsFrom = map[int]stateest.CurrentMeasurement{
		0: {I: trueIFrom, Variance: 1e-6, AngleType: params.AngleGlobal},
	}
	out, err := stateest.RunIterativeLinear(yb, meas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)

	for k := range baseline.U {
		require.InDelta(t, real(baseline.U[k]), real(out.U[k]), 1e-3)
		require.InDelta(t, imag(baseline.U[k]), imag(out.U[k]), 1e-3)
	}
}

func TestILSECurrentSensorLocalAngleMatchesPowerBaseline(t *testing.T) {
	yb := twoBusYBus(t)
	buses, yff, yft, ytf, ytt := branchMeasurementFields()

	baselineMeas := stateest.Measurements{
		VoltageSensors: map[int]params.VoltageSensorParam{
			0: {U: complex(1.0, 0), Variance: 1e-6},
		},
		PowerSensors: map[int]params.PowerSensorParam{
			1: {S: complex(-0.3, -0.1), VarianceP: 1e-6, VarianceQ: 1e-6},
		},
		BranchBuses: buses, BranchYff: yff, BranchYft: yft, BranchYtf: ytf, BranchYtt: ytt,
	}
	baseline, err := stateest.RunIterativeLinear(yb, baselineMeas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)

	trueIFrom := yff[0][0]*baseline.U[0] + yft[0][0]*baseline.U[1]
	// Local-angle readings are relative to the from-side bus voltage phase.
	localI := trueIFrom * cmplx.Rect(1, -cmplx.Phase(baseline.U[0]))

	meas := baselineMeas
	meas.CurrentSensorsFrom = map[int]stateest.CurrentMeasurement{
		0: {I: localI, Variance: 1e-6, AngleType: params.AngleLocal},
	}
	out, err := stateest.RunIterativeLinear(yb, meas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)

	for k := range baseline.U {
		require.InDelta(t, real(baseline.U[k]), real(out.U[k]), 1e-3)
		require.InDelta(t, imag(baseline.U[k]), imag(out.U[k]), 1e-3)
	}
}

func TestNRSEMatchesILSEOnVoltageOnlyProblem(t *testing.T) {
	yb := twoBusYBus(t)
	meas := stateest.Measurements{
		VoltageSensors: map[int]params.VoltageSensorParam{
			0: {U: complex(1.0, 0), Variance: 1.0},
		},
	}
	ilse, err := stateest.RunIterativeLinear(yb, meas, stateest.DefaultOptions(), nil)
	require.NoError(t, err)
	nrse, err := stateest.RunNewtonRaphson(yb, meas, 0, stateest.DefaultOptions(), nil)
	require.NoError(t, err)

	for k := range ilse.U {
		require.InDelta(t, cmplx.Abs(ilse.U[k]), cmplx.Abs(nrse.U[k]), 1e-4)
	}
}
