// Package records defines the flat, fixed-layout record families the
// core consumes and produces: input records with construction-time
// invariants, update records whose fields are all optional (NaN/na
// sentinel means "unchanged") together with their Inverse operation
// for batch revert, and output records carrying the
// per-node/per-branch/per-appliance/per-sensor/per-fault results.
//
// Every record leads with a 32-bit id, addressing grid elements by a
// stable integer handle rather than a pointer.
package records

import (
	"math"

	"powergrid/internal/pgconst"
)

// NaN is the update-record / floating-field sentinel ("use default or
// derive" on input, "unchanged" on update).
var NaN = math.NaN()

func isNaN(f float64) bool { return pgconst.IsNaN(f) }

// applyFloat returns newVal unless it is NaN, in which case oldVal is
// kept - the update-application rule used by every Apply method below.
func applyFloat(newVal, oldVal float64) float64 {
	if isNaN(newVal) {
		return oldVal
	}
	return newVal
}

func applyInt8(newVal, oldVal int8) int8 {
	if newVal == pgconst.NaIntS {
		return oldVal
	}
	return newVal
}

// --- Branch -----------------------------------------------------------

// BranchInput is the construction-time record of a two-terminal branch.
type BranchInput struct {
	ID                       int32
	FromBus, ToBus           int32
	FromStatus, ToStatus     bool
	R1, X1, G1, B1           float64
	R0, X0, G0, B0           float64 // NaN when the branch is symmetric-only
}

// BranchUpdate is the structural update of a branch: from/to energized
// status. All-NaN/na fields mean "unchanged".
type BranchUpdate struct {
	ID                   int32
	FromStatus, ToStatus int8 // na_IntS means unchanged; 0/1 otherwise
}

// Apply returns the BranchInput with this update's fields applied.
func (u BranchUpdate) Apply(b BranchInput) BranchInput {
	if u.FromStatus != pgconst.NaIntS {
		b.FromStatus = u.FromStatus != 0
	}
	if u.ToStatus != pgconst.NaIntS {
		b.ToStatus = u.ToStatus != 0
	}
	return b
}

// Inverse returns the update that restores the pre-update status
// recorded in prior, for batch revert.
func (u BranchUpdate) Inverse(prior BranchInput) BranchUpdate {
	inv := BranchUpdate{ID: u.ID, FromStatus: pgconst.NaIntS, ToStatus: pgconst.NaIntS}
	if u.FromStatus != pgconst.NaIntS {
		inv.FromStatus = boolToInt8(prior.FromStatus)
	}
	if u.ToStatus != pgconst.NaIntS {
		inv.ToStatus = boolToInt8(prior.ToStatus)
	}
	return inv
}

func boolToInt8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

// --- Shunt --------------------------------------------------------------

// ShuntInput is the construction-time record of a shunt admittance.
type ShuntInput struct {
	ID        int32
	Bus       int32
	Status    bool
	G1, B1    float64
	G0, B0    float64
}

// ShuntUpdate carries the structural status update.
type ShuntUpdate struct {
	ID     int32
	Status int8
}

func (u ShuntUpdate) Apply(s ShuntInput) ShuntInput {
	if u.Status != pgconst.NaIntS {
		s.Status = u.Status != 0
	}
	return s
}

func (u ShuntUpdate) Inverse(prior ShuntInput) ShuntUpdate {
	inv := ShuntUpdate{ID: u.ID, Status: pgconst.NaIntS}
	if u.Status != pgconst.NaIntS {
		inv.Status = boolToInt8(prior.Status)
	}
	return inv
}

// --- Source -------------------------------------------------------------

// SourceInput is the construction-time record of a voltage source.
type SourceInput struct {
	ID             int32
	Bus            int32
	Status         bool
	U1Ref          float64 // reference voltage magnitude, p.u.
	Sk, RXRatio    float64
	Z0Z1Ratio      float64
}

// SourceUpdate carries value-only (reference voltage) and structural
// (status) fields; status changes invalidate Y-bus structure only in
// the sense of which buses are energized, never the sparsity pattern.
type SourceUpdate struct {
	ID     int32
	Status int8
	U1Ref  float64
}

func (u SourceUpdate) Apply(s SourceInput) SourceInput {
	if u.Status != pgconst.NaIntS {
		s.Status = u.Status != 0
	}
	s.U1Ref = applyFloat(u.U1Ref, s.U1Ref)
	return s
}

func (u SourceUpdate) Inverse(prior SourceInput) SourceUpdate {
	inv := SourceUpdate{ID: u.ID, Status: pgconst.NaIntS, U1Ref: NaN}
	if u.Status != pgconst.NaIntS {
		inv.Status = boolToInt8(prior.Status)
	}
	if !isNaN(u.U1Ref) {
		inv.U1Ref = prior.U1Ref
	}
	return inv
}

// --- Load / generator -----------------------------------------------------

// LoadGenInput is the construction-time record of a load or generator.
type LoadGenInput struct {
	ID       int32
	Bus      int32
	Status   bool
	Type     int8 // params.LoadGenType
	P, Q     float64
}

// LoadGenUpdate carries value-only power and structural status fields.
type LoadGenUpdate struct {
	ID     int32
	Status int8
	P, Q   float64
}

func (u LoadGenUpdate) Apply(l LoadGenInput) LoadGenInput {
	if u.Status != pgconst.NaIntS {
		l.Status = u.Status != 0
	}
	l.P = applyFloat(u.P, l.P)
	l.Q = applyFloat(u.Q, l.Q)
	return l
}

func (u LoadGenUpdate) Inverse(prior LoadGenInput) LoadGenUpdate {
	inv := LoadGenUpdate{ID: u.ID, Status: pgconst.NaIntS, P: NaN, Q: NaN}
	if u.Status != pgconst.NaIntS {
		inv.Status = boolToInt8(prior.Status)
	}
	if !isNaN(u.P) {
		inv.P = prior.P
	}
	if !isNaN(u.Q) {
		inv.Q = prior.Q
	}
	return inv
}

// --- Fault ----------------------------------------------------------------

// FaultInput is the construction-time record of a short-circuit fault.
type FaultInput struct {
	ID        int32
	Bus       int32
	Status    bool
	Type      int8
	Phase     int8
	RFault    float64
	XFault    float64
}

// FaultUpdate carries value-only (fault impedance) and structural
// (status) fields.
type FaultUpdate struct {
	ID             int32
	Status         int8
	RFault, XFault float64
}

func (u FaultUpdate) Apply(f FaultInput) FaultInput {
	if u.Status != pgconst.NaIntS {
		f.Status = u.Status != 0
	}
	f.RFault = applyFloat(u.RFault, f.RFault)
	f.XFault = applyFloat(u.XFault, f.XFault)
	return f
}

func (u FaultUpdate) Inverse(prior FaultInput) FaultUpdate {
	inv := FaultUpdate{ID: u.ID, Status: pgconst.NaIntS, RFault: NaN, XFault: NaN}
	if u.Status != pgconst.NaIntS {
		inv.Status = boolToInt8(prior.Status)
	}
	if !isNaN(u.RFault) {
		inv.RFault = prior.RFault
	}
	if !isNaN(u.XFault) {
		inv.XFault = prior.XFault
	}
	return inv
}

// --- Sensors (value-only, never invalidate Y-bus structure) ---------------

// VoltageSensorInput is a voltage-measurement input record.
type VoltageSensorInput struct {
	ID               int32
	MeasuredObject   int32
	UMeasured, UAngle float64
	USigma           float64
}

// VoltageSensorUpdate replaces the measurement and its variance.
type VoltageSensorUpdate struct {
	ID                int32
	UMeasured, UAngle float64
	USigma            float64
}

func (u VoltageSensorUpdate) Apply(s VoltageSensorInput) VoltageSensorInput {
	s.UMeasured = applyFloat(u.UMeasured, s.UMeasured)
	s.UAngle = applyFloat(u.UAngle, s.UAngle)
	s.USigma = applyFloat(u.USigma, s.USigma)
	return s
}

func (u VoltageSensorUpdate) Inverse(prior VoltageSensorInput) VoltageSensorUpdate {
	inv := VoltageSensorUpdate{ID: u.ID, UMeasured: NaN, UAngle: NaN, USigma: NaN}
	if !isNaN(u.UMeasured) {
		inv.UMeasured = prior.UMeasured
	}
	if !isNaN(u.UAngle) {
		inv.UAngle = prior.UAngle
	}
	if !isNaN(u.USigma) {
		inv.USigma = prior.USigma
	}
	return inv
}

// PowerSensorInput is a power-measurement input record.
type PowerSensorInput struct {
	ID             int32
	MeasuredObject int32
	MeasuredSide   int8 // from/to/bus
	PMeasured      float64
	QMeasured      float64
	PSigma, QSigma float64
}

// PowerSensorUpdate replaces the measurement and its variance.
type PowerSensorUpdate struct {
	ID             int32
	PMeasured      float64
	QMeasured      float64
	PSigma, QSigma float64
}

func (u PowerSensorUpdate) Apply(s PowerSensorInput) PowerSensorInput {
	s.PMeasured = applyFloat(u.PMeasured, s.PMeasured)
	s.QMeasured = applyFloat(u.QMeasured, s.QMeasured)
	s.PSigma = applyFloat(u.PSigma, s.PSigma)
	s.QSigma = applyFloat(u.QSigma, s.QSigma)
	return s
}

func (u PowerSensorUpdate) Inverse(prior PowerSensorInput) PowerSensorUpdate {
	inv := PowerSensorUpdate{ID: u.ID, PMeasured: NaN, QMeasured: NaN, PSigma: NaN, QSigma: NaN}
	if !isNaN(u.PMeasured) {
		inv.PMeasured = prior.PMeasured
	}
	if !isNaN(u.QMeasured) {
		inv.QMeasured = prior.QMeasured
	}
	if !isNaN(u.PSigma) {
		inv.PSigma = prior.PSigma
	}
	if !isNaN(u.QSigma) {
		inv.QSigma = prior.QSigma
	}
	return inv
}

// CurrentSensorInput is a current-measurement input record.
type CurrentSensorInput struct {
	ID             int32
	MeasuredObject int32
	MeasuredSide   int8
	AngleType      int8 // params.AngleMeasureType
	IMeasured      float64
	IAngle         float64
	ISigma         float64
}

// CurrentSensorUpdate replaces the measurement and its variance.
type CurrentSensorUpdate struct {
	ID                int32
	IMeasured, IAngle float64
	ISigma            float64
}

func (u CurrentSensorUpdate) Apply(s CurrentSensorInput) CurrentSensorInput {
	s.IMeasured = applyFloat(u.IMeasured, s.IMeasured)
	s.IAngle = applyFloat(u.IAngle, s.IAngle)
	s.ISigma = applyFloat(u.ISigma, s.ISigma)
	return s
}

func (u CurrentSensorUpdate) Inverse(prior CurrentSensorInput) CurrentSensorUpdate {
	inv := CurrentSensorUpdate{ID: u.ID, IMeasured: NaN, IAngle: NaN, ISigma: NaN}
	if !isNaN(u.IMeasured) {
		inv.IMeasured = prior.IMeasured
	}
	if !isNaN(u.IAngle) {
		inv.IAngle = prior.IAngle
	}
	if !isNaN(u.ISigma) {
		inv.ISigma = prior.ISigma
	}
	return inv
}

// --- Output -----------------------------------------------------------

// NodeOutput is the per-node result: complex voltage in p.u. and in
// volts, angle, and bus injection power. NaN propagates through a
// disconnected (de-energized) node.
type NodeOutput struct {
	ID            int32
	UPu           float64
	UAngle        float64
	UVolt         float64
	PInjection    float64
	QInjection    float64
}

// BranchOutput is the per-branch result: from/to power and current,
// and loading (worst-side ratio to rated).
type BranchOutput struct {
	ID                     int32
	PFrom, QFrom, IFrom    float64
	PTo, QTo, ITo          float64
	Loading                float64
}

// ApplianceOutput is the per-appliance (load/gen/source/shunt) result.
type ApplianceOutput struct {
	ID           int32
	P, Q, I      float64
	PowerFactor  float64
}

// SensorOutput is the per-sensor residual: measured minus computed.
type SensorOutput struct {
	ID            int32
	Residual      float64
	ResidualAngle float64
}

// FaultOutput is the per-fault result: current magnitude and angle per
// phase, magnitude 0 on phases the fault does not involve.
type FaultOutput struct {
	ID                int32
	IMagnitude        [3]float64
	IAngle            [3]float64
}

// DisconnectedNodeOutput returns the all-NaN sentinel output used for a
// de-energized node.
func DisconnectedNodeOutput(id int32) NodeOutput {
	return NodeOutput{ID: id, UPu: NaN, UAngle: NaN, UVolt: NaN, PInjection: NaN, QInjection: NaN}
}
