//go:build integration

package integration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryonbaker/gh-notifier/internal/models"
)

// TestColdStartEmptyInboxProducesNoDispatches covers: state dir empty,
// remote returns 200 [], expect zero rows, last_checked_at unchanged, zero
// dispatches.
func TestColdStartEmptyInboxProducesNoDispatches(t *testing.T) {
	env := setupTestEnv(t, defaultEngineConfig(), []pollResponse{
		{items: nil},
	})

	runFor(t, env.Engine, testRunDuration)

	count, err := env.Store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, env.State.GetLastCheckedAt())
	assert.Empty(t, env.Sink.Sent)
}

// TestColdStartOneNewItemDispatchesAndPersists covers: remote returns one
// item, expect exactly one dispatch with the rendered title/body, one store
// row, and last_checked_at advanced to the item's updated_at.
func TestColdStartOneNewItemDispatchesAndPersists(t *testing.T) {
	item := rawNotification("1", "2024-01-02T10:00:00Z", "mention", "alice/web", "Hi", "Issue", "https://x/1", true)

	env := setupTestEnv(t, defaultEngineConfig(), []pollResponse{
		{items: []*models.RawNotification{item}},
	})

	runFor(t, env.Engine, testRunDuration)

	require.Len(t, env.Sink.Sent, 1)
	assert.Equal(t, "alice/web - mentioned you", env.Sink.Sent[0].Title)
	assert.Contains(t, env.Sink.Sent[0].Body, "Hi\n\n")

	count, err := env.Store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, "2024-01-02T10:00:00Z", env.State.GetLastCheckedAt())
}
