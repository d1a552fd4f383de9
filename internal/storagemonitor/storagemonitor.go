// Package storagemonitor periodically checks the notification store's file
// size and reports storage pressure via Prometheus gauges and structured
// logs. Unlike the teacher's volume-level monitor, a single-user desktop
// daemon has no dedicated mounted volume to statfs -- the database file size
// itself is the only meaningful pressure signal.
package storagemonitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/config"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/store"
)

// Monitor periodically inspects the notification store's on-disk size to
// detect storage pressure.
type Monitor struct {
	store   store.Store
	cfg     *config.RuntimeConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Monitor with the provided dependencies.
func New(st store.Store, cfg *config.RuntimeConfig, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{store: st, cfg: cfg, metrics: m, logger: logger}
}

// Start begins the storage monitoring loop, running at the configured
// monitor interval. The loop stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	interval := time.Duration(m.cfg.Storage.MonitorIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("storage monitor started",
		zap.Duration("interval", interval),
		zap.Int64("warning_bytes", m.cfg.Storage.WarningBytes),
		zap.Int64("critical_bytes", m.cfg.Storage.CriticalBytes),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("storage monitor stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if err := m.Check(); err != nil {
				m.logger.Error("storage check failed", zap.Error(err))
			}
		}
	}
}

// Check performs a single storage check: reads the database file size,
// updates the size gauge, and evaluates it against the warning/critical
// thresholds.
func (m *Monitor) Check() error {
	sizeBytes, err := m.store.DatabaseSizeBytes()
	if err != nil {
		return err
	}

	m.metrics.DBSizeBytes.Set(float64(sizeBytes))
	m.evaluatePressure(sizeBytes)

	m.logger.Debug("storage check completed", zap.Int64("db_size_bytes", sizeBytes))
	return nil
}

// evaluatePressure sets the storage pressure gauges and logs a warning or
// error when the database file size crosses a configured threshold.
func (m *Monitor) evaluatePressure(sizeBytes int64) {
	m.metrics.StoragePressure.WithLabelValues("none").Set(0)
	m.metrics.StoragePressure.WithLabelValues("warning").Set(0)
	m.metrics.StoragePressure.WithLabelValues("critical").Set(0)

	switch {
	case sizeBytes >= m.cfg.Storage.CriticalBytes:
		m.metrics.StoragePressure.WithLabelValues("critical").Set(1)
		m.logger.Error("CRITICAL: notification store size exceeds critical threshold",
			zap.Int64("size_bytes", sizeBytes),
			zap.Int64("critical_bytes", m.cfg.Storage.CriticalBytes),
		)
	case sizeBytes >= m.cfg.Storage.WarningBytes:
		m.metrics.StoragePressure.WithLabelValues("warning").Set(1)
		m.logger.Warn("notification store size exceeds warning threshold",
			zap.Int64("size_bytes", sizeBytes),
			zap.Int64("warning_bytes", m.cfg.Storage.WarningBytes),
		)
	default:
		m.metrics.StoragePressure.WithLabelValues("none").Set(1)
	}
}
