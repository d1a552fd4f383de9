//go:build integration

package integration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryonbaker/gh-notifier/internal/apperrors"
	"github.com/bryonbaker/gh-notifier/internal/models"
)

// TestRateLimitThenRecoveryDispatchesOnce covers: the first poll returns a
// rate-limit error, the engine backs off by RetryInterval, and the next
// poll succeeds with one item. Expect exactly one dispatch.
func TestRateLimitThenRecoveryDispatchesOnce(t *testing.T) {
	item := rawNotification("1", "2024-01-02T10:00:00Z", "mention", "alice/web", "Hi", "Issue", "https://x/1", true)

	env := setupTestEnv(t, defaultEngineConfig(), []pollResponse{
		{err: &apperrors.RemoteError{Kind: "RateLimitExceeded", Message: "API rate limit exceeded"}},
		{items: []*models.RawNotification{item}},
	})

	runFor(t, env.Engine, testRunDuration)

	require.Len(t, env.Sink.Sent, 1)
	assert.Equal(t, "alice/web - mentioned you", env.Sink.Sent[0].Title)
}

// TestStartupRecoveryRedispatchesUnreadWithinWindow covers: the store
// contains one unread, not-yet-recovered item received within the recovery
// window. On init, expect one dispatch with the " - Recovery" title suffix,
// and -- since mark_as_read_on_notify is set -- the item becomes read.
func TestStartupRecoveryRedispatchesUnreadWithinWindow(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.RecoveryWindow = 24 * time.Hour
	cfg.MarkAsReadOnNotify = true

	env := setupTestEnv(t, cfg, []pollResponse{
		{items: nil},
	})

	receivedAt := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	_, err := env.Store.UpsertIfNew(&models.StoredNotification{
		ID:          "42",
		Title:       "alice/web - mentioned you",
		Body:        "Hi\n\nalice/web | Issue | Updated: 2h ago",
		URL:         "https://x/42",
		Repository:  "alice/web",
		Reason:      "mention",
		SubjectType: "Issue",
		IsRead:      false,
		ReceivedAt:  receivedAt,
	})
	require.NoError(t, err)

	runFor(t, env.Engine, testRunDuration)

	require.Len(t, env.Sink.Sent, 1)
	assert.Equal(t, "alice/web - mentioned you - Recovery", env.Sink.Sent[0].Title)

	read, err := env.Store.IsRead("42")
	require.NoError(t, err)
	assert.True(t, read)
}
