package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryonbaker/gh-notifier/internal/models"
)

func TestRenderFromRawPrivateRepoGetsLockEmoji(t *testing.T) {
	raw := &models.RawNotification{
		RepositoryFullName: "alice/secrets",
		RepositoryPrivate:  true,
		Reason:             "mention",
		SubjectKind:        "Issue",
		SubjectTitle:       "Fix it",
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339),
		URL:                "https://api.github.com/notifications/threads/1",
	}

	r := RenderFromRaw(raw, raw.SubjectTitle, "", "")
	assert.Contains(t, r.Title, "🔒")
	assert.Contains(t, r.Title, "alice/secrets")
	assert.Contains(t, r.Body, "Fix it")
	assert.Equal(t, raw.URL, r.URL)
}

func TestRenderFromRawPublicRepoNoLockEmoji(t *testing.T) {
	raw := &models.RawNotification{
		RepositoryFullName: "alice/web",
		Reason:             "comment",
		SubjectKind:        "PullRequest",
		SubjectTitle:       "Add feature",
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339),
		URL:                "https://api.github.com/notifications/threads/2",
	}

	r := RenderFromRaw(raw, raw.SubjectTitle, "", "")
	assert.NotContains(t, r.Title, "🔒")
	assert.Contains(t, r.Title, "commented on")
	assert.Contains(t, r.Body, "Pull Request")
}

func TestRenderFromRawPrefersSubjectURLOverAPIURL(t *testing.T) {
	raw := &models.RawNotification{
		RepositoryFullName: "alice/web",
		Reason:             "mention",
		SubjectKind:        "Issue",
		SubjectTitle:       "x",
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339),
		URL:                "https://api.github.com/notifications/threads/3",
	}

	r := RenderFromRaw(raw, raw.SubjectTitle, "https://github.com/alice/web/issues/3", "")
	assert.Equal(t, "https://github.com/alice/web/issues/3", r.URL)
}

func TestRenderFromRawAppliesSuffix(t *testing.T) {
	raw := &models.RawNotification{
		RepositoryFullName: "alice/web",
		Reason:             "mention",
		SubjectKind:        "Issue",
		SubjectTitle:       "x",
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339),
		URL:                "https://example.com",
	}

	r := RenderFromRaw(raw, raw.SubjectTitle, "", " - Recovery")
	assert.Contains(t, r.Title, " - Recovery")
}

func TestRenderReplaysStoredTitleAndBody(t *testing.T) {
	n := &models.StoredNotification{
		Title:      "alice/web - mentioned you",
		Body:       "Fix it\n\nalice/web | Issue | Updated: 1h ago",
		URL:        "https://example.com",
		Repository: "alice/web",
	}

	r := Render(n, "")
	assert.Equal(t, n.Title, r.Title)
	assert.Equal(t, n.Body, r.Body)

	r = Render(n, " - Recovery")
	assert.Equal(t, n.Title+" - Recovery", r.Title)
}

func TestTimeAgoBuckets(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		delta time.Duration
		want  string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
	}

	for _, c := range cases {
		ts := now.Add(-c.delta).Format(time.RFC3339)
		assert.Equal(t, c.want, timeAgo(ts, now))
	}
}

func TestTimeAgoFallsBackToDateBeyondAWeek(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-30 * 24 * time.Hour).Format(time.RFC3339)
	assert.Equal(t, "May 16", timeAgo(ts, now))
}

func TestDummySinkRecordsSends(t *testing.T) {
	sink := NewDummySink()
	err := sink.Send(context.Background(), Rendered{Title: "t"}, Flags{})
	require.NoError(t, err)
	require.Len(t, sink.Sent, 1)
	assert.Equal(t, "t", sink.Sent[0].Title)
}

func TestMultiSinkFansOutAndCollectsFirstError(t *testing.T) {
	a := NewDummySink()
	b := NewDummySink()
	m := NewMultiSink(a, b)

	err := m.Send(context.Background(), Rendered{Title: "hello"}, Flags{})
	require.NoError(t, err)
	assert.Len(t, a.Sent, 1)
	assert.Len(t, b.Sent, 1)
}

func TestMultiSinkSupportsPersistentIfAnySinkDoes(t *testing.T) {
	m := NewMultiSink(NewDesktopSink(""), NewDummySink())
	assert.True(t, m.SupportsPersistent())
}
