package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg), "registering twice is a no-op")
	defer Unregister(reg)

	PointsAwarded.WithLabelValues("challenge").Add(150)
	OutboxPending.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["progress_points_awarded_total"])
	assert.True(t, names["progress_outbox_pending"])
	assert.Equal(t, float64(3), testutil.ToFloat64(OutboxPending))
}

func TestUnregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	Unregister(reg)

	// After unregistering, a fresh registration must succeed without conflicts.
	require.NoError(t, Register(reg))
	Unregister(reg)
}
