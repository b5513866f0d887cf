package records

import (
	"powergrid/pkg/params"
	"powergrid/pkg/powerflow"
	"powergrid/pkg/topology"
)

// BuildTopology assembles a topology.Topology from a flat branch input
// list: bus count, slack bus and per-bus phase shift are supplied by
// the caller (phaseShift may be nil for an all-zero default), branch
// connectivity comes from each BranchInput's FromBus/ToBus, de-energized
// per the from/to status flags.
func BuildTopology(nBus, slackBus int, phaseShift []float64, branches []BranchInput) *topology.Topology {
	if phaseShift == nil {
		phaseShift = make([]float64, nBus)
	}
	topo := &topology.Topology{
		NBus:       nBus,
		SlackBus:   slackBus,
		PhaseShift: phaseShift,
	}
	for _, b := range branches {
		be := topology.BranchEndpoint{From: int(b.FromBus), To: int(b.ToBus)}
		if !b.FromStatus {
			be.From = topology.Disconnected
		}
		if !b.ToStatus {
			be.To = topology.Disconnected
		}
		topo.BranchBusIdx = append(topo.BranchBusIdx, be)
	}
	return topo
}

// BranchParams reduces every BranchInput to its calculation parameter
// and energized flag, ready for ybus.YBus.Refresh. baseY is the system
// base admittance (1/Z_base) used to convert R1/X1 (ohms) into
// per-unit series admittance; an asymmetric (dim=3) BranchParam is
// produced whenever R0 is not NaN, a symmetric (dim=1) one otherwise.
func BranchParams(branches []BranchInput, baseY float64) ([]params.BranchParam, []bool) {
	bps := make([]params.BranchParam, len(branches))
	energized := make([]bool, len(branches))
	for i, b := range branches {
		fromConn, toConn := b.FromStatus, b.ToStatus
		energized[i] = fromConn || toConn
		if isNaN(b.R0) {
			bps[i] = params.CalcGenericBranch(b.R1*baseY, b.X1*baseY, b.G1/baseY, b.B1/baseY, fromConn, toConn)
			continue
		}
		ys1 := params.LineSeriesAdmittance(b.R1, b.X1, baseY)
		ys0 := params.LineSeriesAdmittance(b.R0, b.X0, baseY)
		yh1 := complex(b.G1, b.B1) / complex(baseY, 0)
		yh0 := complex(b.G0, b.B0) / complex(baseY, 0)
		bps[i] = params.CalcBranchAsym(ys1, ys0, yh1, yh0, 1, 0, fromConn, toConn)
	}
	return bps, energized
}

// ShuntParams reduces every ShuntInput to its calculation parameter and
// energized flag.
func ShuntParams(shunts []ShuntInput) ([]params.ShuntParam, []bool) {
	sps := make([]params.ShuntParam, len(shunts))
	energized := make([]bool, len(shunts))
	for i, s := range shunts {
		energized[i] = s.Status
		dim := 1
		if !isNaN(s.G0) {
			dim = 3
		}
		sps[i] = params.CalcShuntParam(s.G1, s.B1, dim)
	}
	return sps, energized
}

// SourceParams reduces every SourceInput to its internal Thevenin
// admittance, for use by the short-circuit solver.
func SourceParams(sources []SourceInput) []params.SourceParam {
	sps := make([]params.SourceParam, len(sources))
	for i, s := range sources {
		sps[i] = params.CalcSourceParam(s.Sk, s.RXRatio, s.Z0Z1Ratio, 1)
	}
	return sps
}

// LoadGenInjections groups every energized LoadGenInput's power-flow
// injection by its bus, sign convention (generator positive, load
// negative) already reflected in P/Q as supplied by the caller.
func LoadGenInjections(loadGens []LoadGenInput) map[int][]powerflow.LoadGen {
	out := make(map[int][]powerflow.LoadGen)
	for _, l := range loadGens {
		if !l.Status {
			continue
		}
		out[int(l.Bus)] = append(out[int(l.Bus)], powerflow.LoadGen{
			ID:   l.ID,
			S:    complex(l.P, l.Q),
			Type: params.LoadGenType(l.Type),
		})
	}
	return out
}

// SourceVoltages maps every energized SourceInput's bus to its pinned
// reference voltage (magnitude U1Ref, zero phase - the flat reference
// frame every source shares).
func SourceVoltages(sources []SourceInput) map[int]complex128 {
	out := make(map[int]complex128)
	for _, s := range sources {
		if !s.Status {
			continue
		}
		out[int(s.Bus)] = complex(s.U1Ref, 0)
	}
	return out
}

// BuildFaultParam builds the params.FaultParam for a FaultInput.
func BuildFaultParam(f FaultInput) (params.FaultParam, error) {
	zFault := complex(f.RFault, f.XFault)
	return params.NewFaultParam(zFault, params.FaultType(f.Type), params.FaultPhase(f.Phase))
}
