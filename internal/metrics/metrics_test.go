package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetricsDoesNotPanic verifies that creating metrics against a fresh
// registry completes without panicking.
func TestNewMetricsDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		m := NewMetrics(reg)
		require.NotNil(t, m)
	})
}

// TestMetricsCanBeIncremented verifies that representative metrics from each
// category can be used after registration.
func TestMetricsCanBeIncremented(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	// Polling
	m.PollsTotal.WithLabelValues("ok").Inc()
	m.PollDuration.Observe(0.25)
	m.RawItemsReceivedTotal.Inc()
	m.ItemsFilteredTotal.Inc()
	m.LastPollTimestamp.Set(1234567890)

	// Dispatch
	m.DispatchesTotal.WithLabelValues("desktop", "success").Inc()
	m.DispatchDuration.WithLabelValues("desktop").Observe(0.01)

	// Rate limit & retry
	m.RateLimitRemaining.Set(4999)
	m.RetriesTotal.WithLabelValues("rate_limit").Inc()
	m.BackoffSeconds.Observe(5)

	// Recovery
	m.RecoveryDispatchedTotal.Inc()
	m.RecoveryDuration.Observe(0.5)

	// Store
	m.StoreRowsTotal.WithLabelValues("unread").Set(3)
	m.StoreOperationDuration.WithLabelValues("upsert").Observe(0.001)
	m.StoreOperationErrors.WithLabelValues("upsert").Inc()
	m.DBSizeBytes.Set(4096)

	// Retention & storage pressure
	m.RetentionRunsTotal.WithLabelValues("success").Inc()
	m.RetentionRecordsDeleted.Inc()
	m.StoragePressure.WithLabelValues("warning").Set(1)

	// Component health
	m.ComponentUp.WithLabelValues("engine").Set(1)
	m.AuthFailuresTotal.Inc()

	// Gather all metrics to verify they were correctly registered.
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Greater(t, len(families), 0, "expected at least one metric family to be gathered")
}

// TestNoDuplicateRegistration ensures that creating two separate Metrics
// instances on two fresh registries does not panic (no global state leaks).
func TestNoDuplicateRegistration(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()

	assert.NotPanics(t, func() {
		_ = NewMetrics(reg1)
	})
	assert.NotPanics(t, func() {
		_ = NewMetrics(reg2)
	})
}

// TestDuplicateRegistrationPanics verifies that registering metrics twice on
// the same registry panics, confirming we are using MustRegister correctly.
func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewMetrics(reg)

	assert.Panics(t, func() {
		_ = NewMetrics(reg)
	})
}
