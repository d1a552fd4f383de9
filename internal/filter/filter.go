// Package filter implements the declarative include/exclude rule set
// applied to raw notifications before they are persisted and dispatched.
package filter

import (
	"strings"
	"time"

	"github.com/bryonbaker/gh-notifier/internal/models"
)

// Keep is a pure, stateless function: Keep(r, cfg) == Keep(r, cfg) for any
// repeated call with equal arguments. Rules are applied in the order given
// in the filter pipeline's specification; the first failing rule
// short-circuits the remaining checks.
func Keep(r *models.RawNotification, cfg *models.FilterConfig) bool {
	if len(cfg.IncludeRepositories) > 0 && !contains(cfg.IncludeRepositories, r.RepositoryFullName) {
		return false
	}
	if contains(cfg.ExcludeRepositories, r.RepositoryFullName) {
		return false
	}

	org := r.Organization()
	if len(cfg.IncludeOrganizations) > 0 && !contains(cfg.IncludeOrganizations, org) {
		return false
	}
	if contains(cfg.ExcludeOrganizations, org) {
		return false
	}

	if cfg.ExcludePrivateRepos && r.RepositoryPrivate {
		return false
	}
	if cfg.ExcludeForkRepos && r.RepositoryFork {
		return false
	}

	if len(cfg.IncludeReasons) > 0 && !contains(cfg.IncludeReasons, r.Reason) {
		return false
	}
	if contains(cfg.ExcludeReasons, r.Reason) {
		return false
	}

	if len(cfg.IncludeSubjectKinds) > 0 && !contains(cfg.IncludeSubjectKinds, r.SubjectKind) {
		return false
	}
	if contains(cfg.ExcludeSubjectKinds, r.SubjectKind) {
		return false
	}

	if len(cfg.TitleContains) > 0 && !containsAnyFold(cfg.TitleContains, r.SubjectTitle) {
		return false
	}
	if containsAnyFold(cfg.TitleNotContains, r.SubjectTitle) {
		return false
	}

	if len(cfg.RepositoryContains) > 0 && !containsAnyFold(cfg.RepositoryContains, r.RepositoryFullName) {
		return false
	}

	if cfg.ExcludeDraftPRs && r.SubjectKind == string(models.SubjectPullRequest) && isDraftTitle(r.SubjectTitle) {
		return false
	}

	if cfg.MinimumUpdatedAgeSeconds > 0 && !meetsMinimumAge(r.UpdatedAt, cfg.MinimumUpdatedAgeSeconds) {
		return false
	}

	return true
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func containsAnyFold(substrings []string, haystack string) bool {
	lower := strings.ToLower(haystack)
	for _, s := range substrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// isDraftTitle recognizes the draft-PR title conventions: the literal
// substrings "draft" or "[draft]" anywhere, or a title starting with
// "draft:" or "[draft", or containing "(draft", all case-insensitive.
func isDraftTitle(title string) bool {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "draft"):
		return true
	case strings.Contains(lower, "[draft]"):
		return true
	case strings.HasPrefix(lower, "draft:"):
		return true
	case strings.HasPrefix(lower, "[draft"):
		return true
	case strings.Contains(lower, "(draft"):
		return true
	default:
		return false
	}
}

// meetsMinimumAge reports whether updatedAt is at least minAgeSeconds in
// the past. A malformed timestamp is treated as "does not meet the
// minimum" so an unparseable item is dropped rather than let through.
func meetsMinimumAge(updatedAt string, minAgeSeconds int64) bool {
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return false
	}
	return time.Since(t) >= time.Duration(minAgeSeconds)*time.Second
}
