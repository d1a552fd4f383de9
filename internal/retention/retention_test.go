package retention

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/config"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/models"
	"github.com/bryonbaker/gh-notifier/internal/store"
)

func newTestRetention(t *testing.T) (*Retention, store.Store) {
	t.Helper()
	s, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := &config.RuntimeConfig{}
	cfg.Retention.Enabled = true
	cfg.Retention.CleanupIntervalSec = 1
	cfg.Retention.RetentionPeriodDays = 2

	m := metrics.NewMetrics(prometheus.NewRegistry())
	return New(s, cfg, m, zap.NewNop()), s
}

func notificationReceivedAt(id, receivedAt string) *models.StoredNotification {
	return &models.StoredNotification{
		ID:          id,
		Title:       "t",
		Body:        "b",
		URL:         "https://example.com/" + id,
		Repository:  "alice/web",
		Reason:      "mention",
		SubjectType: "Issue",
		ReceivedAt:  receivedAt,
	}
}

func TestCleanupDeletesRecordsOlderThanRetentionPeriod(t *testing.T) {
	r, s := newTestRetention(t)

	old := notificationReceivedAt("1", time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339))
	recent := notificationReceivedAt("2", time.Now().UTC().Format(time.RFC3339))
	_, err := s.UpsertIfNew(old)
	require.NoError(t, err)
	_, err = s.UpsertIfNew(recent)
	require.NoError(t, err)

	require.NoError(t, r.Cleanup())

	all, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].ID)
}

func TestCleanupNoEligibleRecordsIsNoOp(t *testing.T) {
	r, s := newTestRetention(t)

	recent := notificationReceivedAt("1", time.Now().UTC().Format(time.RFC3339))
	_, err := s.UpsertIfNew(recent)
	require.NoError(t, err)

	require.NoError(t, r.Cleanup())

	all, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestStartReturnsImmediatelyWhenDisabled(t *testing.T) {
	r, _ := newTestRetention(t)
	r.cfg.Retention.Enabled = false

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return immediately when retention is disabled")
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	r, _ := newTestRetention(t)
	r.cfg.Retention.CleanupIntervalSec = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
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
