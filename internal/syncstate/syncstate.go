// Package syncstate persists the sync cursor (last-seen timestamp and
// per-URL cache validators) that makes polling conditional.
package syncstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bryonbaker/gh-notifier/internal/apperrors"
)

// document is the on-disk JSON shape of the sync state, per spec §6:
// {"last_checked_at": string|null, "etags": {url: etag, ...}}.
type document struct {
	LastCheckedAt *string           `json:"last_checked_at"`
	Etags         map[string]string `json:"etags"`
}

// State is the in-memory, mutex-guarded sync cursor. It is loaded once at
// startup and persisted only after a successful poll that produced new
// items, per spec §4.3.
type State struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Load reads the sync state document at path, or returns an empty state if
// the file does not yet exist.
func Load(path string) (*State, error) {
	s := &State{path: path, doc: document{Etags: make(map[string]string)}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, &apperrors.ConfigError{Kind: "LoadError", Message: "reading sync state", Cause: err}
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, &apperrors.ConfigError{Kind: "ParseError", Message: "parsing sync state", Cause: err}
	}
	if s.doc.Etags == nil {
		s.doc.Etags = make(map[string]string)
	}

	return s, nil
}

// GetLastCheckedAt returns the persisted last-checked-at RFC3339 timestamp,
// or "" if none has been recorded yet.
func (s *State) GetLastCheckedAt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.LastCheckedAt == nil {
		return ""
	}
	return *s.doc.LastCheckedAt
}

// SetLastCheckedAt records ts as the most recent successfully-observed
// timestamp. It does not persist; call Persist to write it to disk.
func (s *State) SetLastCheckedAt(ts string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastCheckedAt = &ts
}

// GetEtag returns the cache validator previously recorded for url, or ""
// if none is known.
func (s *State) GetEtag(url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Etags[url]
}

// SetEtag records etag as the cache validator for url.
func (s *State) SetEtag(url, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Etags[url] = etag
}

// Persist atomically writes the current state to disk. A crash between
// Persist calls results in at-most-duplicate (never lost) notifications on
// the next run; duplicates are suppressed downstream by the notification
// store's upsert-if-new primitive.
func (s *State) Persist() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return &apperrors.ConfigError{Kind: "WriteError", Message: "marshalling sync state", Cause: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &apperrors.ConfigError{Kind: "WriteError", Message: "creating sync state directory", Cause: err}
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return &apperrors.ConfigError{Kind: "WriteError", Message: "creating temp sync state file", Cause: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &apperrors.ConfigError{Kind: "WriteError", Message: "writing temp sync state file", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &apperrors.ConfigError{Kind: "WriteError", Message: "closing temp sync state file", Cause: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &apperrors.ConfigError{Kind: "WriteError", Message: fmt.Sprintf("renaming sync state file to %s", s.path), Cause: err}
	}

	return nil
}
