// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

// Package meli provides the resilient client for the upstream marketplace API.
//
// Every outbound call goes through a deterministic per-call state machine:
//
//	Initial → (optional: RefreshAttempted) → {Success | Retrying → Initial | Failed}
//
// The client injects the caller's credential on dispatch, performs at most
// one credential refresh per logical call when the upstream answers 401, and
// retries transient failures (429, 408, 5xx, network faults) of idempotent
// calls with capped exponential backoff, honoring upstream Retry-After hints.
// Concurrent calls hitting 401 at the same time collapse their refreshes into
// a single upstream refresh via singleflight.
//
// Credentials are owned by the caller: the client only reads and replaces
// them through the injected TokenSource and never persists them itself.
package meli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/vendaval/vendaval/internal/config"
	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is retained
// for diagnostics. Prevents unbounded allocation on large error payloads.
const maxErrorBodySize = 64 * 1024

// TokenSource supplies the credential injected into outbound calls.
//
// Implementations live in the credential layer (see internal/auth); the
// client never persists tokens itself.
type TokenSource interface {
	// AccessToken returns the current access token, or empty when the
	// caller has no credential yet.
	AccessToken(ctx context.Context) (string, error)

	// Refresh obtains a fresh access token, replacing the stored one.
	// Called at most once per logical client call.
	Refresh(ctx context.Context) (string, error)
}

// Client is the resilient HTTP client for the marketplace API.
// Safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	tokens    TokenSource
	policy    RetryPolicy
	limiter   *rate.Limiter

	// refreshGroup collapses concurrent 401-triggered refreshes into one
	// upstream refresh call.
	refreshGroup singleflight.Group
}

// ClientOption customizes a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests to
// inject a fake transport.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// NewClient creates a marketplace API client from configuration.
func NewClient(cfg *config.MeliConfig, tokens TokenSource, opts ...ClientOption) *Client {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	if cfg.BackoffBase > 0 {
		policy.Base = cfg.BackoffBase
	}
	if cfg.BackoffCap > 0 {
		policy.Cap = cfg.BackoffCap
	}
	policy.MaxRetryAfter = cfg.MaxRetryAfter

	c := &Client{
		baseURL:   cfg.APIURL,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		tokens:    tokens,
		policy:    policy,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is the resolved result of a successful call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	return decodeJSON(r.Body, v)
}

// callOptions holds per-call settings.
type callOptions struct {
	idempotent  *bool
	timeout     time.Duration
	header      http.Header
	shouldRetry func(error) bool
}

// CallOption customizes a single call.
type CallOption func(*callOptions)

// Idempotent marks the call as safe to retry (or not). Without this option,
// GET, HEAD and OPTIONS default to idempotent and everything else does not.
// Callers that supply their own idempotency key use this to opt mutating
// calls into retries.
func Idempotent(v bool) CallOption {
	return func(o *callOptions) { o.idempotent = &v }
}

// WithTimeout sets a per-call timeout overriding the client default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithHeader adds a header to the call.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Set(key, value)
	}
}

// WithRetryPredicate installs a caller-supplied veto on retries. The
// predicate receives the classified *APIError; returning false suppresses
// the retry even when the policy would allow it.
func WithRetryPredicate(fn func(error) bool) CallOption {
	return func(o *callOptions) { o.shouldRetry = fn }
}

// attempt tracks the mutable per-call state across retries. It is created
// per logical call and discarded after final resolution.
type attempt struct {
	method        string
	path          string
	idempotent    bool
	retries       int
	refreshed     bool
	correlationID string
}

// defaultIdempotent reports whether a method is safe to retry by default.
func defaultIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Do performs a call against the marketplace API, running the full
// credential-injection / refresh-on-401 / retry state machine. The body, if
// any, must be fully buffered so the call can be re-dispatched.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, opts ...CallOption) (*Response, error) {
	co := &callOptions{}
	for _, opt := range opts {
		opt(co)
	}

	att := &attempt{
		method:        method,
		path:          path,
		correlationID: uuid.NewString(),
	}
	if co.idempotent != nil {
		att.idempotent = *co.idempotent
	} else {
		att.idempotent = defaultIdempotent(method)
	}

	for {
		resp, err := c.dispatch(ctx, att, body, co)

		// Success: anything below 400.
		if err == nil && resp.Status < 400 {
			metrics.UpstreamRequests.WithLabelValues(method, "success").Inc()
			return resp, nil
		}

		apiErr := c.toAPIError(att, resp, err)

		// Unauthorized: refresh the credential exactly once, then
		// re-dispatch the same call once. A second 401, or a refresh
		// failure, propagates the original unauthorized error.
		if apiErr.Unauthorized() {
			if att.refreshed {
				metrics.UpstreamRequests.WithLabelValues(method, "unauthorized").Inc()
				return nil, apiErr
			}
			att.refreshed = true
			if rerr := c.refresh(ctx); rerr != nil {
				logging.Warn().Err(rerr).Str("request_id", att.correlationID).Msg("Credential refresh failed")
				metrics.UpstreamRequests.WithLabelValues(method, "unauthorized").Inc()
				return nil, apiErr
			}
			continue
		}

		// Transient: retry only if idempotent, budget remains, and the
		// caller's predicate does not veto.
		if apiErr.Transient() && att.idempotent && att.retries < c.policy.MaxRetries {
			if co.shouldRetry != nil && !co.shouldRetry(apiErr) {
				metrics.UpstreamRequests.WithLabelValues(method, "transient").Inc()
				return nil, apiErr
			}

			var header http.Header
			if resp != nil {
				header = resp.Header
			}
			delay := c.policy.Delay(att.retries, header)
			att.retries++
			metrics.UpstreamRetries.Inc()
			logging.Warn().
				Str("method", method).
				Str("path", path).
				Str("request_id", att.correlationID).
				Int("retry", att.retries).
				Int("max_retries", c.policy.MaxRetries).
				Dur("delay", delay).
				Msg("Retrying upstream call")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		outcome := "permanent"
		switch {
		case apiErr.Status == 0:
			outcome = "network"
		case apiErr.Transient():
			outcome = "transient"
		}
		metrics.UpstreamRequests.WithLabelValues(method, outcome).Inc()
		logging.Error().
			Str("method", method).
			Str("path", path).
			Str("request_id", att.correlationID).
			Int("retries", att.retries).
			Int("status", apiErr.Status).
			Msg("Upstream call failed")
		return nil, apiErr
	}
}

// dispatch performs a single HTTP exchange: throttle, inject credential and
// correlation id, execute, drain body.
func (c *Client) dispatch(ctx context.Context, att *attempt, body []byte, co *callOptions) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx := ctx
	if co.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, co.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, att.method, c.baseURL+att.path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range co.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", att.correlationID)
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Authorization") == "" {
		token, terr := c.tokens.AccessToken(ctx)
		if terr != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", terr)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logging.Debug().
		Str("method", att.method).
		Str("path", att.path).
		Str("request_id", att.correlationID).
		Msg("Dispatching upstream call")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	logging.Debug().
		Str("method", att.method).
		Str("path", att.path).
		Str("request_id", att.correlationID).
		Int("status", resp.StatusCode).
		Msg("Upstream call returned")

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// refresh replaces the credential through the token source, collapsing
// concurrent refreshes into a single upstream call.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.tokens.Refresh(ctx)
	})
	return err
}

// toAPIError normalizes a dispatch result into an APIError with attempt
// metadata attached.
func (c *Client) toAPIError(att *attempt, resp *Response, err error) *APIError {
	apiErr := &APIError{
		Method:        att.method,
		Path:          att.path,
		CorrelationID: att.correlationID,
		Retries:       att.retries,
		Err:           err,
	}
	if resp != nil {
		apiErr.Status = resp.Status
		if len(resp.Body) > maxErrorBodySize {
			apiErr.Body = string(resp.Body[:maxErrorBodySize]) + "... (truncated)"
		} else {
			apiErr.Body = string(resp.Body)
		}
	}
	return apiErr
}

// Get performs a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Post performs a POST with a JSON body and decodes the response into out.
// POST calls are not retried unless explicitly marked idempotent.
func (c *Client) Post(ctx context.Context, path string, in, out any, opts ...CallOption) error {
	body, err := encodeJSON(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	resp, err := c.Do(ctx, http.MethodPost, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Put performs a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, in, out any, opts ...CallOption) error {
	body, err := encodeJSON(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	resp, err := c.Do(ctx, http.MethodPut, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
