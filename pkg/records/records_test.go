package records_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/internal/pgconst"
	"powergrid/pkg/records"
)

func TestLoadGenUpdateInverseRoundTrip(t *testing.T) {
	original := records.LoadGenInput{ID: 1, Bus: 0, Status: true, P: 0.5, Q: 0.1}

	update := records.LoadGenUpdate{ID: 1, Status: pgconst.NaIntS, P: 0.9, Q: records.NaN}
	updated := update.Apply(original)
	require.InDelta(t, 0.9, updated.P, 1e-9)
	require.InDelta(t, 0.1, updated.Q, 1e-9) // unchanged, NaN means "unchanged"

	inverse := update.Inverse(original)
	restored := inverse.Apply(updated)
	require.Equal(t, original, restored)
}

func TestLoadGenUpdateIncompleteFieldsRetainPrior(t *testing.T) {
	// Scenario C: update only status, leaving p_specified as NaN.
	original := records.LoadGenInput{ID: 1, Bus: 0, Status: false, P: 1.2, Q: 0.3}
	update := records.LoadGenUpdate{ID: 1, Status: 1, P: records.NaN, Q: records.NaN}
	updated := update.Apply(original)

	require.True(t, updated.Status)
	require.InDelta(t, 1.2, updated.P, 1e-9)
	require.InDelta(t, 0.3, updated.Q, 1e-9)
}

func TestBranchUpdateInverseRoundTrip(t *testing.T) {
	original := records.BranchInput{ID: 2, FromBus: 0, ToBus: 1, FromStatus: true, ToStatus: true}
	update := records.BranchUpdate{ID: 2, FromStatus: 0, ToStatus: pgconst.NaIntS}
	updated := update.Apply(original)
	require.False(t, updated.FromStatus)
	require.True(t, updated.ToStatus)

	inverse := update.Inverse(original)
	restored := inverse.Apply(updated)
	require.Equal(t, original, restored)
}

func TestVoltageSensorUpdateInverseRoundTrip(t *testing.T) {
	original := records.VoltageSensorInput{ID: 3, MeasuredObject: 0, UMeasured: 1.0, USigma: 0.01}
	update := records.VoltageSensorUpdate{ID: 3, UMeasured: 1.05, UAngle: records.NaN, USigma: records.NaN}
	updated := update.Apply(original)
	require.InDelta(t, 1.05, updated.UMeasured, 1e-9)

	inverse := update.Inverse(original)
	restored := inverse.Apply(updated)
	require.Equal(t, original, restored)
}

func TestDisconnectedNodeOutputIsAllNaN(t *testing.T) {
	out := records.DisconnectedNodeOutput(7)
	require.Equal(t, int32(7), out.ID)
	require.True(t, math.IsNaN(out.UPu))
	require.True(t, math.IsNaN(out.PInjection))
}
