package storagemonitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/config"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/store"
)

func newTestMonitor(t *testing.T) (*Monitor, *prometheus.Registry) {
	t.Helper()
	s, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := &config.RuntimeConfig{}
	cfg.Storage.MonitorIntervalSec = 1
	cfg.Storage.WarningBytes = 1
	cfg.Storage.CriticalBytes = 1 << 40

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	return New(s, cfg, m, zap.NewNop()), reg
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			match := true
			for _, l := range metric.GetLabel() {
				if want, ok := labels[l.GetName()]; ok && want != l.GetValue() {
					match = false
				}
			}
			if match {
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func TestCheckUpdatesDBSizeGauge(t *testing.T) {
	mon, reg := newTestMonitor(t)
	require.NoError(t, mon.Check())

	size := gaugeValue(t, reg, "ghnotifier_db_size_bytes", nil)
	require.Greater(t, size, float64(0))
}

func TestCheckClassifiesWarningPressure(t *testing.T) {
	mon, reg := newTestMonitor(t)
	require.NoError(t, mon.Check())

	// An empty freshly-created SQLite database already exceeds 1 byte, so
	// the warning threshold (set to 1 byte above) should be tripped.
	warning := gaugeValue(t, reg, "ghnotifier_storage_pressure", map[string]string{"severity": "warning"})
	require.Equal(t, float64(1), warning)
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	mon, _ := newTestMonitor(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
