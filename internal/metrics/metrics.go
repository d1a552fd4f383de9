// Package metrics defines and registers all Prometheus metrics used by
// gh-notifier. Metrics are organised by functional area and share the
// common "ghnotifier_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector used by gh-notifier.
type Metrics struct {
	// ---------------------------------------------------------------
	// Polling
	// ---------------------------------------------------------------

	// PollsTotal counts poll ticks by outcome (ok, not_modified, error).
	PollsTotal *prometheus.CounterVec

	// PollDuration observes how long a single poll tick takes.
	PollDuration prometheus.Histogram

	// RawItemsReceivedTotal counts items returned by the remote before filtering.
	RawItemsReceivedTotal prometheus.Counter

	// ItemsFilteredTotal counts items dropped by the filter pipeline.
	ItemsFilteredTotal prometheus.Counter

	// LastPollTimestamp records the Unix timestamp of the most recent poll.
	LastPollTimestamp prometheus.Gauge

	// ---------------------------------------------------------------
	// Dispatch
	// ---------------------------------------------------------------

	// DispatchesTotal counts notifications handed to a sink, by sink name and outcome.
	DispatchesTotal *prometheus.CounterVec

	// DispatchDuration observes how long a single sink Send call takes.
	DispatchDuration *prometheus.HistogramVec

	// ---------------------------------------------------------------
	// Rate limit & retry
	// ---------------------------------------------------------------

	// RateLimitRemaining tracks the remote's advertised remaining request budget.
	RateLimitRemaining prometheus.Gauge

	// RetriesTotal counts retry attempts against the remote, by classification.
	RetriesTotal *prometheus.CounterVec

	// BackoffSeconds observes the sleep duration applied before the next poll.
	BackoffSeconds prometheus.Histogram

	// ---------------------------------------------------------------
	// Recovery
	// ---------------------------------------------------------------

	// RecoveryDispatchedTotal counts items re-dispatched by the startup recovery pass.
	RecoveryDispatchedTotal prometheus.Counter

	// RecoveryDuration observes how long the startup recovery pass takes.
	RecoveryDuration prometheus.Histogram

	// ---------------------------------------------------------------
	// Store
	// ---------------------------------------------------------------

	// StoreRowsTotal tracks the current notification count by read state.
	StoreRowsTotal *prometheus.GaugeVec

	// StoreOperationDuration observes store operation latencies by operation.
	StoreOperationDuration *prometheus.HistogramVec

	// StoreOperationErrors counts store operation errors by operation.
	StoreOperationErrors *prometheus.CounterVec

	// DBSizeBytes tracks the SQLite database file size.
	DBSizeBytes prometheus.Gauge

	// ---------------------------------------------------------------
	// Retention & storage pressure
	// ---------------------------------------------------------------

	// RetentionRunsTotal counts retention cleanup runs by status.
	RetentionRunsTotal *prometheus.CounterVec

	// RetentionRecordsDeleted counts total records deleted by retention.
	RetentionRecordsDeleted prometheus.Counter

	// StoragePressure indicates database-size pressure by severity level.
	StoragePressure *prometheus.GaugeVec

	// ---------------------------------------------------------------
	// Component health
	// ---------------------------------------------------------------

	// ComponentUp indicates whether a component is healthy (1) or not (0).
	ComponentUp *prometheus.GaugeVec

	// AuthFailuresTotal counts credential validation failures.
	AuthFailuresTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics with the supplied
// registerer. Pass prometheus.DefaultRegisterer for global registration or a
// custom registry for testing.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{}

	// -------------------------------------------------------------------
	// Polling Metrics
	// -------------------------------------------------------------------

	m.PollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghnotifier_polls_total",
		Help: "Total poll ticks by outcome.",
	}, []string{"outcome"})
	registerer.MustRegister(m.PollsTotal)

	m.PollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghnotifier_poll_duration_seconds",
		Help:    "Time taken to complete a single poll tick.",
		Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
	registerer.MustRegister(m.PollDuration)

	m.RawItemsReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ghnotifier_raw_items_received_total",
		Help: "Total raw notification items received from the remote, pre-filter.",
	})
	registerer.MustRegister(m.RawItemsReceivedTotal)

	m.ItemsFilteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ghnotifier_items_filtered_total",
		Help: "Total items dropped by the filter pipeline.",
	})
	registerer.MustRegister(m.ItemsFilteredTotal)

	m.LastPollTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ghnotifier_last_poll_timestamp",
		Help: "Unix timestamp of the most recent poll tick.",
	})
	registerer.MustRegister(m.LastPollTimestamp)

	// -------------------------------------------------------------------
	// Dispatch Metrics
	// -------------------------------------------------------------------

	m.DispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghnotifier_dispatches_total",
		Help: "Total notifications handed to a sink, by sink and outcome.",
	}, []string{"sink", "outcome"})
	registerer.MustRegister(m.DispatchesTotal)

	m.DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghnotifier_dispatch_duration_seconds",
		Help:    "Time taken for a sink to deliver a single notification.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"sink"})
	registerer.MustRegister(m.DispatchDuration)

	// -------------------------------------------------------------------
	// Rate Limit & Retry Metrics
	// -------------------------------------------------------------------

	m.RateLimitRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ghnotifier_rate_limit_remaining",
		Help: "Remaining request budget reported by the remote's last rate_limit check.",
	})
	registerer.MustRegister(m.RateLimitRemaining)

	m.RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghnotifier_retries_total",
		Help: "Total retry attempts against the remote, by classification.",
	}, []string{"reason"})
	registerer.MustRegister(m.RetriesTotal)

	m.BackoffSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghnotifier_backoff_seconds",
		Help:    "Sleep duration applied before the next poll tick.",
		Buckets: []float64{1, 5, 10, 30, 60, 300},
	})
	registerer.MustRegister(m.BackoffSeconds)

	// -------------------------------------------------------------------
	// Recovery Metrics
	// -------------------------------------------------------------------

	m.RecoveryDispatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ghnotifier_recovery_dispatched_total",
		Help: "Total items re-dispatched by the startup recovery pass.",
	})
	registerer.MustRegister(m.RecoveryDispatchedTotal)

	m.RecoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghnotifier_recovery_duration_seconds",
		Help:    "Time taken to complete the startup recovery pass.",
		Buckets: []float64{0.01, 0.1, 0.5, 1.0, 5.0, 10.0},
	})
	registerer.MustRegister(m.RecoveryDuration)

	// -------------------------------------------------------------------
	// Store Metrics
	// -------------------------------------------------------------------

	m.StoreRowsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghnotifier_store_rows_total",
		Help: "Current notification count by read state.",
	}, []string{"state"})
	registerer.MustRegister(m.StoreRowsTotal)

	m.StoreOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghnotifier_store_operation_duration_seconds",
		Help:    "Store operation latencies by operation.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"operation"})
	registerer.MustRegister(m.StoreOperationDuration)

	m.StoreOperationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghnotifier_store_operation_errors_total",
		Help: "Store operation errors by operation.",
	}, []string{"operation"})
	registerer.MustRegister(m.StoreOperationErrors)

	m.DBSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ghnotifier_db_size_bytes",
		Help: "Current size of the SQLite notification store file.",
	})
	registerer.MustRegister(m.DBSizeBytes)

	// -------------------------------------------------------------------
	// Retention & Storage Pressure Metrics
	// -------------------------------------------------------------------

	m.RetentionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ghnotifier_retention_runs_total",
		Help: "Retention cleanup runs by status.",
	}, []string{"status"})
	registerer.MustRegister(m.RetentionRunsTotal)

	m.RetentionRecordsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ghnotifier_retention_records_deleted_total",
		Help: "Total notification records deleted by retention.",
	})
	registerer.MustRegister(m.RetentionRecordsDeleted)

	m.StoragePressure = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghnotifier_storage_pressure",
		Help: "Database storage pressure by severity level (1 = active).",
	}, []string{"severity"})
	registerer.MustRegister(m.StoragePressure)

	// -------------------------------------------------------------------
	// Component Health Metrics
	// -------------------------------------------------------------------

	m.ComponentUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ghnotifier_component_up",
		Help: "Whether a component is healthy (1) or not (0).",
	}, []string{"component"})
	registerer.MustRegister(m.ComponentUp)

	m.AuthFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ghnotifier_auth_failures_total",
		Help: "Total credential validation failures.",
	})
	registerer.MustRegister(m.AuthFailuresTotal)

	return m
}
