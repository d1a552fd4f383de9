// Package models defines the data structures used throughout gh-notifier.
package models

import "strings"

// Reason is the closed set of values GitHub reports for why a notification
// was raised.
type Reason string

// Recognized notification reasons. A raw value outside this set is still
// accepted by ParseReason; decoding never fails because the API adds new
// reasons over time.
const (
	ReasonAssign          Reason = "assign"
	ReasonAuthor          Reason = "author"
	ReasonComment         Reason = "comment"
	ReasonInvitation      Reason = "invitation"
	ReasonManual          Reason = "manual"
	ReasonMention         Reason = "mention"
	ReasonReviewRequested Reason = "review_requested"
	ReasonSecurityAlert   Reason = "security_alert"
	ReasonStateChange     Reason = "state_change"
	ReasonSubscribed      Reason = "subscribed"
	ReasonTeamMention     Reason = "team_mention"
	ReasonUnknown         Reason = "unknown"
)

// ParseReason maps a raw wire string to a Reason. Recognized reasons pass
// through unchanged; anything else is kept as-is so the raw string survives
// for display, per the Dispatch Layer's "unknown reason -> raw string" rule.
func ParseReason(s string) Reason {
	if s == "" {
		return ReasonUnknown
	}
	return Reason(s)
}

// SubjectKind identifies the kind of thing a notification's subject points at.
type SubjectKind string

const (
	SubjectIssue       SubjectKind = "Issue"
	SubjectPullRequest SubjectKind = "PullRequest"
	SubjectCommit      SubjectKind = "Commit"
	SubjectRelease     SubjectKind = "Release"
)

// RawNotification is the wire shape returned by GET /notifications.
type RawNotification struct {
	ID                 string  `json:"id"`
	RepositoryFullName string  `json:"repository_full_name"`
	RepositoryPrivate  bool    `json:"repository_private"`
	RepositoryFork     bool    `json:"repository_fork"`
	SubjectTitle       string  `json:"subject_title"`
	SubjectKind        string  `json:"subject_kind"`
	SubjectURL         *string `json:"subject_url,omitempty"`
	Reason             string  `json:"reason"`
	Unread             bool    `json:"unread"`
	UpdatedAt          string  `json:"updated_at"`
	LastReadAt         *string `json:"last_read_at,omitempty"`
	URL                string  `json:"url"`
	HTMLURL            *string `json:"html_url,omitempty"`
}

// Organization returns the prefix before the first "/" in the repository's
// full name, or the full name itself if there is no "/".
func (r *RawNotification) Organization() string {
	if i := strings.IndexByte(r.RepositoryFullName, '/'); i >= 0 {
		return r.RepositoryFullName[:i]
	}
	return r.RepositoryFullName
}

// StoredNotification is the local, persisted form of a notification. It
// mirrors the notifications database table.
type StoredNotification struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Body         string  `json:"body"`
	URL          string  `json:"url"`
	Repository   string  `json:"repository"`
	Reason       string  `json:"reason"`
	SubjectType  string  `json:"subject_type"`
	IsRead       bool    `json:"is_read"`
	ReceivedAt   string  `json:"received_at"`
	MarkedReadAt *string `json:"marked_read_at,omitempty"`
}

// Translate builds the StoredNotification that should be inserted the first
// time raw is observed. receivedAt is fixed at translation time; it must
// never be recomputed on a later re-observation of the same id (see
// Store.UpsertIfNew and P3 in the notification store's tests).
func Translate(raw *RawNotification, title, body, url, receivedAt string) *StoredNotification {
	return &StoredNotification{
		ID:          raw.ID,
		Title:       title,
		Body:        body,
		URL:         url,
		Repository:  raw.RepositoryFullName,
		Reason:      raw.Reason,
		SubjectType: raw.SubjectKind,
		IsRead:      !raw.Unread,
		ReceivedAt:  receivedAt,
	}
}

// FilterConfig is the declarative include/exclude rule set applied to raw
// notifications by the filter pipeline.
type FilterConfig struct {
	IncludeRepositories  []string `toml:"include_repositories"`
	ExcludeRepositories  []string `toml:"exclude_repositories"`
	IncludeReasons       []string `toml:"include_reasons"`
	ExcludeReasons       []string `toml:"exclude_reasons"`
	IncludeSubjectKinds  []string `toml:"include_subject_kinds"`
	ExcludeSubjectKinds  []string `toml:"exclude_subject_kinds"`
	IncludeOrganizations []string `toml:"include_organizations"`
	ExcludeOrganizations []string `toml:"exclude_organizations"`

	ExcludePrivateRepos bool `toml:"exclude_private_repos"`
	ExcludeForkRepos    bool `toml:"exclude_fork_repos"`
	ExcludeDraftPRs     bool `toml:"exclude_draft_prs"`

	TitleContains      []string `toml:"title_contains"`
	TitleNotContains   []string `toml:"title_not_contains"`
	RepositoryContains []string `toml:"repository_contains"`

	// MinimumUpdatedAgeSeconds, in seconds; zero disables the rule. TOML
	// has no native duration scalar, so the wire/config form is a plain
	// integer rather than a Duration wrapper.
	MinimumUpdatedAgeSeconds int64 `toml:"minimum_updated_age_seconds"`
}

// RateLimit mirrors the advisory rate-limit response from the remote.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetAt   int64
}
