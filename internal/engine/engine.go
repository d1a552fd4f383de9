// Package engine implements the Sync Engine: the ticker-driven loop that
// authenticates, polls the remote inbox, filters and persists new items,
// dispatches them, and recovers missed notifications on startup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/apperrors"
	"github.com/bryonbaker/gh-notifier/internal/credential"
	"github.com/bryonbaker/gh-notifier/internal/dispatch"
	"github.com/bryonbaker/gh-notifier/internal/filter"
	"github.com/bryonbaker/gh-notifier/internal/metrics"
	"github.com/bryonbaker/gh-notifier/internal/models"
	"github.com/bryonbaker/gh-notifier/internal/store"
	"github.com/bryonbaker/gh-notifier/internal/syncstate"
)

// Remote is the subset of the Remote Client the engine drives.
type Remote interface {
	ListInbox(ctx context.Context, ifModifiedSince, etag string) (items []*models.RawNotification, respETag string, notModified bool, err error)
	MarkRead(ctx context.Context, id string) error
	ValidateCredential(ctx context.Context) (bool, error)
	GetRateLimit(ctx context.Context) (*models.RateLimit, error)
}

// AuthPrompt asks the user, interactively, for a new personal access token.
// It must never be called while any store or sync-state lock is held.
type AuthPrompt func(ctx context.Context) (string, error)

// Config carries the subset of RuntimeConfig the engine needs, kept narrow
// so the engine package doesn't import internal/config (which would create
// an import cycle once config starts constructing the engine).
type Config struct {
	PollInterval             time.Duration
	MarkAsReadOnNotify       bool
	PersistentNotifications  bool
	RecoveryWindow           time.Duration
	BatchSize                int
	BatchInterval            time.Duration
	RetryCount               int
	RetryInterval            time.Duration
	Filter                   models.FilterConfig
}

// Engine is the C7 Sync Engine.
type Engine struct {
	cfg    Config
	remote Remote
	store  store.Store
	state  *syncstate.State
	creds  credential.Store
	sink   dispatch.Sink
	prompt AuthPrompt
	logger *zap.Logger
	m      *metrics.Metrics

	cred      *credential.Credential
	nextDelay time.Duration
	health    *metrics.HealthChecks
}

// New builds an Engine. cred may be nil; Run's Init step loads or prompts
// for one before polling begins. health may be nil, in which case the
// engine does not report component status anywhere.
func New(cfg Config, remote Remote, st store.Store, state *syncstate.State, creds credential.Store, sink dispatch.Sink, prompt AuthPrompt, logger *zap.Logger, m *metrics.Metrics, health *metrics.HealthChecks) *Engine {
	return &Engine{
		cfg:    cfg,
		remote: remote,
		store:  st,
		state:  state,
		creds:  creds,
		sink:   sink,
		prompt: prompt,
		logger: logger,
		m:      m,
		health: health,
	}
}

// reportHealth records the named component's status if a HealthChecks was
// supplied at construction; it is a no-op otherwise.
func (e *Engine) reportHealth(component, status string) {
	if e.health != nil {
		e.health.Update(component, status)
	}
}

// SetRemote assigns the Remote Client after construction, breaking the
// circular dependency between the engine (which implements
// remote.CredentialSource) and the Remote Client (which needs a
// CredentialSource to build). Callers build the engine with a nil remote,
// construct the Remote Client against the engine, then call SetRemote
// before Run.
func (e *Engine) SetRemote(r Remote) {
	e.remote = r
}

// Current implements remote.CredentialSource.
func (e *Engine) Current() *credential.Credential {
	return e.cred
}

// Run executes Init, Recover, then the Polling loop, until ctx is
// cancelled. It returns nil on a clean shutdown, or a non-nil error only
// when Init fails terminally (authentication rejected after a re-prompt).
func (e *Engine) Run(ctx context.Context) error {
	if err := e.init(ctx); err != nil {
		return err
	}

	if e.cfg.RecoveryWindow > 0 {
		if err := e.recover(ctx); err != nil {
			e.logger.Warn("startup recovery failed", zap.Error(err))
		}
	}

	return e.pollLoop(ctx)
}

// init loads the persisted credential, prompting interactively if absent,
// and validates it against the remote. An auth failure deletes the stored
// credential and re-prompts once; a network failure during validation is
// tolerated (the engine proceeds optimistically and will surface the
// failure on the first real poll).
func (e *Engine) init(ctx context.Context) error {
	cred, err := e.creds.Load()
	if err != nil {
		e.logger.Warn("failed to load credential", zap.Error(err))
	}

	if cred == nil {
		if token := envToken(); token != "" {
			cred, err = e.saveToken(token)
		} else {
			cred, err = e.promptAndSave(ctx)
		}
		if err != nil {
			return err
		}
	}
	e.cred = cred

	valid, err := e.remote.ValidateCredential(ctx)
	if err != nil {
		e.logger.Warn("credential validation inconclusive, proceeding optimistically", zap.Error(err))
		return nil
	}
	if valid {
		e.reportHealth(metrics.ComponentCredentials, "ok")
		return nil
	}

	e.m.AuthFailuresTotal.Inc()
	e.reportHealth(metrics.ComponentCredentials, "rejected")
	e.logger.Warn("stored credential rejected by remote, re-prompting")
	if err := e.creds.Delete(); err != nil {
		e.logger.Warn("failed to delete rejected credential", zap.Error(err))
	}

	cred, err = e.promptAndSave(ctx)
	if err != nil {
		return err
	}
	e.cred = cred

	valid, err = e.remote.ValidateCredential(ctx)
	if err != nil {
		e.logger.Warn("credential re-validation inconclusive, proceeding optimistically", zap.Error(err))
		return nil
	}
	if !valid {
		e.reportHealth(metrics.ComponentCredentials, "rejected")
		return &apperrors.EngineError{Kind: "Generic", Message: "credential rejected after re-authentication"}
	}
	e.reportHealth(metrics.ComponentCredentials, "ok")
	return nil
}

func (e *Engine) promptAndSave(ctx context.Context) (*credential.Credential, error) {
	if e.prompt == nil {
		return nil, &apperrors.EngineError{Kind: "Generic", Message: "no credential available and no interactive prompt configured"}
	}
	token, err := e.prompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("prompting for credential: %w", err)
	}
	return e.saveToken(token)
}

// saveToken validates a token's format, wraps it as a Credential, and
// persists it to the credential store. Used both for interactively
// prompted tokens and for tokens seeded from GITHUB_TOKEN/APP_TOKEN.
func (e *Engine) saveToken(token string) (*credential.Credential, error) {
	if warning, ok := credential.ValidateTokenFormat(token); !ok {
		e.logger.Warn("token format looks unusual, proceeding anyway", zap.String("warning", warning))
	}

	cred := credential.Credential{Token: credential.NewSecretString(token), Scheme: "Bearer"}
	if err := e.creds.Save(cred); err != nil {
		e.logger.Warn("failed to persist credential, will re-prompt next start", zap.Error(err))
	}
	return &cred, nil
}

// envToken returns the first of GITHUB_TOKEN or APP_TOKEN that is set, per
// spec §6: these seed the credential store on first run, ahead of the
// interactive prompt.
func envToken() string {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		return v
	}
	return os.Getenv("APP_TOKEN")
}

// recover re-dispatches unread items received within the configured
// recovery window that have not already been marked read, per end-to-end
// scenario 6.
func (e *Engine) recover(ctx context.Context) error {
	start := time.Now()
	defer func() { e.m.RecoveryDuration.Observe(time.Since(start).Seconds()) }()

	unread, err := e.store.ListUnread()
	if err != nil {
		return fmt.Errorf("listing unread notifications for recovery: %w", err)
	}

	cutoff := time.Now().Add(-e.cfg.RecoveryWindow)
	var candidates []*models.StoredNotification
	for _, n := range unread {
		receivedAt, err := time.Parse(time.RFC3339, n.ReceivedAt)
		if err != nil {
			continue
		}
		if n.MarkedReadAt != nil {
			continue
		}
		if receivedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, n)
	}

	for i, n := range candidates {
		if i > 0 && e.cfg.BatchSize > 0 && i%e.cfg.BatchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.BatchInterval):
			}
		}

		rendered := dispatch.Render(n, " - Recovery")
		if err := e.sink.Send(ctx, rendered, dispatch.Flags{Persistent: e.cfg.PersistentNotifications}); err != nil {
			e.logger.Warn("recovery dispatch failed", zap.String("id", n.ID), zap.Error(err))
			continue
		}
		e.m.RecoveryDispatchedTotal.Inc()

		if e.cfg.MarkAsReadOnNotify {
			if err := e.store.MarkAsRead(n.ID); err != nil {
				e.logger.Warn("failed to mark recovered notification as read", zap.String("id", n.ID), zap.Error(err))
			}
		}
	}

	e.logger.Info("startup recovery complete", zap.Int("dispatched", len(candidates)))
	return nil
}

// pollLoop runs the poll-filter-persist-dispatch cycle on a timer until ctx
// is cancelled. On a rate-limit or network error the next tick is delayed
// by RetryInterval instead of PollInterval.
func (e *Engine) pollLoop(ctx context.Context) error {
	e.nextDelay = e.cfg.PollInterval

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case <-timer.C:
			e.tick(ctx)
			timer.Reset(e.nextDelay)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		e.m.PollDuration.Observe(time.Since(start).Seconds())
		e.m.PollsTotal.WithLabelValues(outcome).Inc()
		e.m.LastPollTimestamp.Set(float64(time.Now().Unix()))
	}()

	lastChecked := e.state.GetLastCheckedAt()
	etag := e.state.GetEtag(inboxURL)

	raw, respETag, notModified, err := e.remote.ListInbox(ctx, lastChecked, etag)
	if err != nil {
		e.handlePollError(err)
		outcome = "error"
		e.reportHealth(metrics.ComponentRemote, "error")
		return
	}
	e.reportHealth(metrics.ComponentRemote, "ok")
	if notModified {
		outcome = "not_modified"
		e.nextDelay = e.cfg.PollInterval
		return
	}
	if respETag != "" {
		e.state.SetEtag(inboxURL, respETag)
	}

	e.nextDelay = e.cfg.PollInterval
	e.m.RawItemsReceivedTotal.Add(float64(len(raw)))

	maxUpdatedAt := lastChecked
	for _, item := range raw {
		if item.UpdatedAt > maxUpdatedAt {
			maxUpdatedAt = item.UpdatedAt
		}

		if !filter.Keep(item, &e.cfg.Filter) {
			e.m.ItemsFilteredTotal.Inc()
			continue
		}

		if err := e.persistAndDispatch(ctx, item); err != nil {
			e.logger.Warn("failed to process notification", zap.String("id", item.ID), zap.Error(err))
			continue
		}
	}

	if maxUpdatedAt != "" {
		e.state.SetLastCheckedAt(maxUpdatedAt)
	}
	if err := e.state.Persist(); err != nil {
		e.logger.Warn("failed to persist sync state", zap.Error(err))
	}
}

func (e *Engine) persistAndDispatch(ctx context.Context, raw *models.RawNotification) error {
	subjectTitle := raw.SubjectTitle
	url := ""
	if raw.SubjectURL != nil {
		url = *raw.SubjectURL
	}
	rendered := dispatch.RenderFromRaw(raw, subjectTitle, url, "")

	receivedAt := time.Now().UTC().Format(time.RFC3339)
	n := models.Translate(raw, rendered.Title, rendered.Body, rendered.URL, receivedAt)

	inserted, err := e.store.UpsertIfNew(n)
	if err != nil {
		return fmt.Errorf("upserting notification %s: %w", raw.ID, err)
	}
	if !inserted {
		return nil
	}

	e.m.StoreRowsTotal.WithLabelValues("total").Inc()

	sendStart := time.Now()
	sendErr := e.sink.Send(ctx, rendered, dispatch.Flags{Persistent: e.cfg.PersistentNotifications})
	e.m.DispatchDuration.WithLabelValues(e.sink.Name()).Observe(time.Since(sendStart).Seconds())
	if sendErr != nil {
		e.m.DispatchesTotal.WithLabelValues(e.sink.Name(), "error").Inc()
		return fmt.Errorf("dispatching notification %s: %w", raw.ID, sendErr)
	}
	e.m.DispatchesTotal.WithLabelValues(e.sink.Name(), "success").Inc()

	if e.cfg.MarkAsReadOnNotify {
		if err := e.remote.MarkRead(ctx, raw.ID); err != nil {
			e.logger.Warn("failed to mark notification read on remote", zap.String("id", raw.ID), zap.Error(err))
		}
		if err := e.store.MarkAsRead(raw.ID); err != nil {
			e.logger.Warn("failed to mark notification read locally", zap.String("id", raw.ID), zap.Error(err))
		}
	}

	return nil
}

func (e *Engine) handlePollError(err error) {
	var remoteErr *apperrors.RemoteError
	if errors.As(err, &remoteErr) {
		switch {
		case errors.Is(err, apperrors.ErrRateLimitExceeded):
			e.m.RetriesTotal.WithLabelValues("rate_limit").Inc()
			e.nextDelay = e.cfg.RetryInterval
			e.m.BackoffSeconds.Observe(e.nextDelay.Seconds())
			e.logger.Warn("rate limited, backing off", zap.Duration("delay", e.nextDelay))
			return
		case errors.Is(err, apperrors.ErrAuthenticationFail):
			e.logger.Error("authentication rejected during poll", zap.Error(err))
			e.nextDelay = e.cfg.PollInterval
			return
		}
	}

	e.m.RetriesTotal.WithLabelValues("network").Inc()
	e.nextDelay = e.cfg.RetryInterval
	e.logger.Warn("poll failed, backing off", zap.Duration("delay", e.nextDelay), zap.Error(err))
}

// shutdown persists final sync state. It never returns an error: shutdown
// always succeeds in terms of exit code even if persistence partially
// failed.
func (e *Engine) shutdown() error {
	if err := e.state.Persist(); err != nil {
		e.logger.Warn("failed to persist sync state during shutdown", zap.Error(err))
	}
	e.logger.Info("sync engine stopped")
	return nil
}

const inboxURL = "/notifications"
