// Package retention implements the periodic cleanup loop that removes
// notifications older than the configured retention period, so the
// notification store does not grow without bound on a long-running desktop
// install.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/config"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/store"
)

// Retention periodically deletes notifications received before the
// configured retention window and reclaims the freed pages.
type Retention struct {
	store   store.Store
	cfg     *config.RuntimeConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Retention with the provided dependencies.
func New(st store.Store, cfg *config.RuntimeConfig, m *metrics.Metrics, logger *zap.Logger) *Retention {
	return &Retention{store: st, cfg: cfg, metrics: m, logger: logger}
}

// Start begins the cleanup loop, running at the configured cleanup interval.
// The loop stops when ctx is cancelled. If retention is disabled, Start
// returns immediately.
func (r *Retention) Start(ctx context.Context) {
	if !r.cfg.Retention.Enabled {
		r.logger.Info("retention disabled, skipping cleanup loop")
		return
	}

	interval := time.Duration(r.cfg.Retention.CleanupIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("retention started",
		zap.Duration("cleanup_interval", interval),
		zap.Uint64("retention_period_days", r.cfg.Retention.RetentionPeriodDays),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("retention stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if err := r.Cleanup(); err != nil {
				r.logger.Error("retention cleanup failed", zap.Error(err))
			}
		}
	}
}

// Cleanup performs a single cleanup pass: delete notifications received
// before the retention cutoff, then reclaim their pages.
func (r *Retention) Cleanup() error {
	start := time.Now()

	cutoff := time.Now().UTC().
		AddDate(0, 0, -int(r.cfg.Retention.RetentionPeriodDays)).
		Format(time.RFC3339)

	deleted, err := r.store.DeleteReceivedBefore(cutoff)
	if err != nil {
		r.metrics.RetentionRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("deleting notifications received before %s: %w", cutoff, err)
	}

	r.metrics.RetentionRecordsDeleted.Add(float64(deleted))

	if deleted > 0 {
		if err := r.store.IncrementalVacuum(); err != nil {
			r.logger.Warn("incremental vacuum failed", zap.Error(err))
		}
	}

	duration := time.Since(start)
	r.metrics.RetentionRunsTotal.WithLabelValues("success").Inc()

	r.logger.Info("retention cleanup completed",
		zap.Int64("deleted", deleted),
		zap.String("cutoff", cutoff),
		zap.Duration("duration", duration),
	)

	return nil
}
