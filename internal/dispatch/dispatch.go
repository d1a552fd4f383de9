// Package dispatch renders a stored notification into a title/body/url
// triple and hands it to a pluggable sink.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/bryonbaker/gh-notifier/internal/models"
)

// Rendered is the output of the render step: a sink-agnostic presentation
// of a single notification.
type Rendered struct {
	Title string
	Body  string
	URL   string
}

// Flags carries dispatch-time options that a sink may or may not be able to
// honor.
type Flags struct {
	// Persistent requests the platform make the notification
	// non-auto-dismissing. Sinks that cannot honor it MUST still succeed.
	Persistent bool
}

// Sink is the capability every dispatch backend implements.
type Sink interface {
	Send(ctx context.Context, r Rendered, flags Flags) error
	Name() string
	SupportsPersistent() bool
}

// reasonDisplay maps a raw reason value to its display text. A reason
// outside this table is shown as the raw string.
var reasonDisplay = map[string]string{
	"assign":           "_assigned to you_",
	"author":           "authored by you",
	"comment":          "commented on",
	"invitation":       "invited you",
	"manual":           "mentioned you",
	"mention":          "mentioned you",
	"review_requested": "_Review Requested_",
	"security_alert":   "_Security Alert_",
	"state_change":     "state changed",
	"subscribed":       "subscribed",
	"team_mention":     "team mentioned",
}

// subjectKindDisplay maps a subject kind to its display text; anything not
// in the table passes through unchanged.
var subjectKindDisplay = map[string]string{
	"PullRequest": "Pull Request",
}

// Render returns the already-rendered title/body/url for a stored
// notification, as computed at first-dispatch time by RenderFromRaw and
// persisted verbatim. suffix, when non-empty, is appended to the title --
// this is how the recovery path marks a re-dispatched item " - Recovery"
// without touching the persisted title.
func Render(n *models.StoredNotification, suffix string) Rendered {
	title := n.Title
	if suffix != "" {
		title += suffix
	}
	return Rendered{Title: title, Body: n.Body, URL: n.URL}
}

// RenderFromRaw builds the title/body/url triple directly from a raw
// notification plus its rendered subject title, which is how the engine
// actually calls this package on the fresh-poll path (the private-repo
// decoration needs repository_private, which only the raw form carries).
func RenderFromRaw(raw *models.RawNotification, subjectTitle, url string, suffix string) Rendered {
	repoDecorated := raw.RepositoryFullName
	if raw.RepositoryPrivate {
		repoDecorated = "🔒 " + repoDecorated
	}
	display, ok := reasonDisplay[raw.Reason]
	if !ok {
		display = raw.Reason
	}
	title := fmt.Sprintf("%s - %s", repoDecorated, display)
	if suffix != "" {
		title += suffix
	}

	kindDisplay, ok := subjectKindDisplay[raw.SubjectKind]
	if !ok {
		kindDisplay = raw.SubjectKind
	}

	body := fmt.Sprintf("%s\n\n%s | %s | Updated: %s", subjectTitle, raw.RepositoryFullName, kindDisplay, timeAgo(raw.UpdatedAt, time.Now()))

	resolvedURL := url
	if resolvedURL == "" {
		resolvedURL = raw.URL
	}

	return Rendered{Title: title, Body: body, URL: resolvedURL}
}

// timeAgo renders ts (an RFC3339 timestamp) relative to now. Buckets:
// under a minute is "just now", under an hour is minutes, under a day is
// hours, under a week is days, otherwise a localized "MMM DD".
func timeAgo(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}

	d := now.Sub(t)
	switch {
	case d < 60*time.Second:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 02")
	}
}
