// Package remote implements the GitHub notifications API client: conditional
// polling of the inbox, mark-as-read, credential validation, and rate-limit
// introspection, all under a fixed-interval retry discipline.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bryonbaker/gh-notifier/internal/apperrors"
	"github.com/bryonbaker/gh-notifier/internal/credential"
	"github.com/bryonbaker/gh-notifier/internal/models"
)

const (
	baseURL          = "https://api.github.com"
	requestTimeout   = 30 * time.Second
	userAgent        = "gh-notifier"
	acceptHeader     = "application/vnd.github.v3+json"
	rateLimitMarker  = "API rate limit exceeded"
	badCredsMarkerA  = "Bad credentials"
	badCredsMarkerB  = "Invalid token"
)

// CredentialSource supplies the bearer token to attach to every request.
// The engine owns the credential's lifecycle (load/save/delete); the
// client only ever reads it.
type CredentialSource interface {
	Current() *credential.Credential
}

// Client is the C2 Remote Client: a thin, retry-aware wrapper around the
// GitHub notifications REST endpoints.
type Client struct {
	http    *retryablehttp.Client
	creds   CredentialSource
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New builds a Client whose retry loop retries up to retryCount times,
// sleeping a flat retryIntervalSec between attempts -- per the Remote
// Client's retry algorithm, which is deliberately NOT the teacher's
// exponential backoff (see the sync engine's design notes).
func New(creds CredentialSource, retryCount int, retryIntervalSec int64, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil // zap handles our logging; retryablehttp's own logger is noise.
	rc.RetryMax = retryCount
	rc.HTTPClient.Timeout = requestTimeout

	interval := time.Duration(retryIntervalSec) * time.Second
	rc.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return interval
	}
	rc.CheckRetry = checkRetry

	return &Client{
		http:   rc,
		creds:  creds,
		logger: logger,
		// Seeded conservatively; GetRateLimit reseeds it once the engine
		// has made its first authenticated call.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// checkRetry classifies a response/error pair per the Remote Client's
// retry algorithm: rate-limit and network errors retry, authentication
// failures and not-found do not, and anything else falls through to
// retryablehttp's default 5xx/429 policy.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}

	if resp.StatusCode == http.StatusForbidden {
		body := peekBody(resp)
		switch {
		case strings.Contains(body, rateLimitMarker):
			return true, nil
		case strings.Contains(body, badCredsMarkerA), strings.Contains(body, badCredsMarkerB):
			return false, nil
		}
		return false, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// peekBody reads and restores the response body so later classification
// (and retryablehttp's own consumers) can still read it.
func peekBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(strings.NewReader(string(data)))
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	cred := c.creds.Current()
	if cred != nil {
		scheme := cred.Scheme
		if scheme == "" {
			scheme = "Bearer"
		}
		req.Header.Set("Authorization", fmt.Sprintf("%s %s", scheme, cred.Token.Reveal()))
	}

	return req, nil
}

// classifyTerminal converts a final (non-retried, or retries-exhausted)
// HTTP response into the typed error the rest of the system matches on.
func classifyTerminal(resp *http.Response, body string) error {
	switch resp.StatusCode {
	case http.StatusForbidden:
		switch {
		case strings.Contains(body, rateLimitMarker):
			return apperrors.NewRateLimitExceeded(body)
		case strings.Contains(body, badCredsMarkerA), strings.Contains(body, badCredsMarkerB):
			return apperrors.NewAuthenticationError(body)
		}
		return apperrors.NewServerError(resp.StatusCode, body)
	case http.StatusUnauthorized:
		return apperrors.NewAuthenticationError(body)
	case http.StatusNotFound:
		return apperrors.NewNotFound("notification", resp.Request.URL.Path)
	default:
		return apperrors.NewServerError(resp.StatusCode, body)
	}
}

// ListInbox performs a conditional GET of the user's notification inbox.
// notModified is true iff the remote reported 304; in that case items is
// nil and the caller must skip downstream work entirely. respETag carries
// the response's ETag header (if any) so the caller can persist it as the
// validator for the next poll.
func (c *Client) ListInbox(ctx context.Context, ifModifiedSince, etag string) (items []*models.RawNotification, respETag string, notModified bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", false, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, baseURL+"/notifications", nil)
	if err != nil {
		return nil, "", false, err
	}
	if ifModifiedSince != "" {
		req.Header.Set("If-Modified-Since", ifModifiedSince)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", false, apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	respETag = resp.Header.Get("ETag")

	if resp.StatusCode == http.StatusNotModified {
		return nil, respETag, true, nil
	}

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, "", false, classifyTerminal(resp, string(body))
	}

	var raw []*models.RawNotification
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", false, fmt.Errorf("decoding notifications response: %w", err)
	}
	return raw, respETag, false, nil
}

// MarkRead marks a single notification thread as read. Idempotent from the
// caller's perspective: re-marking an already-read thread is not an error.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/notifications/threads/%s", baseURL, id)
	req, err := c.newRequest(ctx, http.MethodPatch, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return classifyTerminal(resp, string(body))
}

// ValidateCredential performs a cheap authenticated GET and reports whether
// the current credential is accepted. Network failures are surfaced as
// errors so the caller can distinguish "definitely invalid" from
// "couldn't tell".
func (c *Client) ValidateCredential(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, baseURL+"/user", nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		io.Copy(io.Discard, resp.Body)
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode == http.StatusForbidden:
		body := peekBody(resp)
		switch {
		case strings.Contains(body, rateLimitMarker):
			return false, apperrors.NewRateLimitExceeded(body)
		case strings.Contains(body, badCredsMarkerA), strings.Contains(body, badCredsMarkerB):
			return false, nil
		}
		return false, apperrors.NewServerError(resp.StatusCode, body)
	default:
		io.Copy(io.Discard, resp.Body)
		return false, apperrors.NewServerError(resp.StatusCode, "")
	}
}

// GetRateLimit fetches the current rate-limit window and reseeds the
// client's outbound limiter so subsequent polls stay within budget.
func (c *Client) GetRateLimit(ctx context.Context) (*models.RateLimit, error) {
	req, err := c.newRequest(ctx, http.MethodGet, baseURL+"/rate_limit", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, classifyTerminal(resp, string(body))
	}

	var payload struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding rate_limit response: %w", err)
	}

	rl := &models.RateLimit{
		Limit:     payload.Resources.Core.Limit,
		Remaining: payload.Resources.Core.Remaining,
		ResetAt:   payload.Resources.Core.Reset,
	}
	c.reseedLimiter(rl)
	return rl, nil
}

// reseedLimiter spreads the remaining quota evenly across the time left
// until reset, so a single poller never front-loads its whole budget.
func (c *Client) reseedLimiter(rl *models.RateLimit) {
	remainingWindow := time.Until(time.Unix(rl.ResetAt, 0))
	if remainingWindow <= 0 || rl.Remaining <= 0 {
		return
	}
	every := remainingWindow / time.Duration(rl.Remaining)
	c.limiter.SetLimit(rate.Every(every))
	c.limiter.SetBurst(1)
}
