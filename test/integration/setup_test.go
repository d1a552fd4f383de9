//go:build integration

// Package integration_test contains end-to-end integration tests for the
// gh-notifier sync engine. Tests exercise the full pipeline from a fake
// remote inbox through filtering, persistence, and dispatch using an
// in-memory SQLite database and an in-memory sync sink.
package integration_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/credential"
	"github.com/bryonbaker/gh-notifier/internal/dispatch"
	"github.com/bryonbaker/gh-notifier/internal/engine"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/models"
	"github.com/bryonbaker/gh-notifier/internal/store"
	"github.com/bryonbaker/gh-notifier/internal/syncstate"
)

// pollResponse is one scripted reply from fakeRemote.ListInbox.
type pollResponse struct {
	items      []*models.RawNotification
	etag       string
	notModified bool
	err        error
}

// fakeRemote implements engine.Remote with a scripted queue of responses.
// Once the queue is drained, it keeps replying 304 Not Modified so a running
// poll loop doesn't re-deliver items after the scenario under test has run.
type fakeRemote struct {
	mu        sync.Mutex
	responses []pollResponse
	calls     int
	marked    []string
}

func (f *fakeRemote) ListInbox(_ context.Context, _, _ string) ([]*models.RawNotification, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.calls++ }()

	if f.calls >= len(f.responses) {
		return nil, "", true, nil
	}
	r := f.responses[f.calls]
	return r.items, r.etag, r.notModified, r.err
}

func (f *fakeRemote) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeRemote) ValidateCredential(_ context.Context) (bool, error) { return true, nil }

func (f *fakeRemote) GetRateLimit(_ context.Context) (*models.RateLimit, error) {
	return &models.RateLimit{Limit: 5000, Remaining: 4999}, nil
}

// memCredStore is a credential.Store that never touches disk or the OS
// secret service, used so engine Init never blocks on an interactive
// prompt during tests.
type memCredStore struct {
	cred *credential.Credential
}

func (s *memCredStore) Save(c credential.Credential) error { s.cred = &c; return nil }
func (s *memCredStore) Load() (*credential.Credential, error) { return s.cred, nil }
func (s *memCredStore) Delete() error { s.cred = nil; return nil }

// testEnv bundles the dependencies needed to run the Sync Engine against a
// scripted remote.
type testEnv struct {
	Store  *store.SQLiteStore
	State  *syncstate.State
	Sink   *dispatch.DummySink
	Remote *fakeRemote
	Engine *engine.Engine
}

func setupTestEnv(t *testing.T, cfg engine.Config, responses []pollResponse) *testEnv {
	t.Helper()

	logger := zap.NewNop()

	st, err := store.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	statePath := filepath.Join(t.TempDir(), "state.json")
	state, err := syncstate.Load(statePath)
	if err != nil {
		t.Fatalf("loading sync state: %v", err)
	}

	sink := dispatch.NewDummySink()
	remote := &fakeRemote{responses: responses}
	creds := &memCredStore{cred: &credential.Credential{Token: credential.NewSecretString("test-token"), Scheme: "Bearer"}}

	m := metrics.NewMetrics(prometheus.NewRegistry())

	eng := engine.New(cfg, remote, st, state, creds, sink, nil, logger, m, nil)
	eng.SetRemote(remote)

	return &testEnv{Store: st, State: state, Sink: sink, Remote: remote, Engine: eng}
}

func defaultEngineConfig() engine.Config {
	return engine.Config{
		PollInterval:  20 * time.Millisecond,
		RetryInterval: 20 * time.Millisecond,
		RetryCount:    3,
		BatchSize:     10,
		BatchInterval: 10 * time.Millisecond,
	}
}

// testRunDuration is long enough for several poll ticks at
// defaultEngineConfig's PollInterval, short enough to keep the suite fast.
const testRunDuration = 150 * time.Millisecond

// runFor starts the engine and lets it run for d before cancelling it,
// waiting for Run to return.
func runFor(t *testing.T, e *engine.Engine, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("engine run returned error: %v", err)
	}
}

func rawNotification(id, updatedAt, reason, repository, subjectTitle, subjectKind, url string, unread bool) *models.RawNotification {
	return &models.RawNotification{
		ID:                 id,
		RepositoryFullName: repository,
		SubjectTitle:       subjectTitle,
		SubjectKind:        subjectKind,
		SubjectURL:         &url,
		Reason:             reason,
		Unread:             unread,
		UpdatedAt:          updatedAt,
		URL:                url,
	}
}
