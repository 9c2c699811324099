// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/vendaval/vendaval/internal/config"
	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/metrics"
)

// OAuth exchanges refresh tokens for access tokens against the
// marketplace authorization server. It satisfies the upstream client's
// token source contract; the client itself decides when to refresh.
type OAuth struct {
	authURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	store        TokenStore
	now          func() time.Time

	mu    sync.Mutex
	token Token
	seen  bool
}

// NewOAuth wires a token source from configuration and a persistence
// store.
func NewOAuth(cfg *config.MeliConfig, store TokenStore) *OAuth {
	return &OAuth{
		authURL:      strings.TrimSuffix(cfg.AuthURL, "/"),
		clientID:     cfg.AppID,
		clientSecret: cfg.ClientSecret,
		http:         &http.Client{Timeout: cfg.Timeout},
		store:        store,
		now:          time.Now,
	}
}

// AccessToken returns the current access token, loading the persisted
// credential on first use. An expired token triggers an inline refresh;
// a missing credential returns ErrNoToken.
func (o *OAuth) AccessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ensureLoaded(ctx); err != nil {
		return "", err
	}
	if o.token.AccessToken != "" && !o.token.Expired(o.now()) {
		return o.token.AccessToken, nil
	}
	return o.refreshLocked(ctx)
}

// Refresh performs a refresh grant and persists the rotated credential.
func (o *OAuth) Refresh(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ensureLoaded(ctx); err != nil {
		return "", err
	}
	return o.refreshLocked(ctx)
}

func (o *OAuth) ensureLoaded(ctx context.Context) error {
	if o.seen {
		return nil
	}
	t, err := o.store.Load(ctx)
	if err != nil {
		return err
	}
	o.token = t
	o.seen = true
	return nil
}

// tokenResponse is the authorization server's grant response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// refreshLocked runs the refresh grant. Caller holds o.mu.
func (o *OAuth) refreshLocked(ctx context.Context) (string, error) {
	if o.token.RefreshToken == "" {
		return "", ErrNoToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("refresh_token", o.token.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.authURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		logging.Warn().
			Int("status", resp.StatusCode).
			Msg("Token refresh rejected by authorization server")
		return "", fmt.Errorf("token refresh rejected: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("token response carries no access token")
	}

	next := Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		UserID:       tr.UserID,
		ExpiresAt:    o.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if next.RefreshToken == "" {
		// Some grants omit rotation; keep the previous refresh token.
		next.RefreshToken = o.token.RefreshToken
	}

	if err := o.store.Save(ctx, next); err != nil {
		// The new token is still valid in memory; losing persistence is
		// survivable until restart.
		logging.Error().Err(err).Msg("Failed to persist refreshed credential")
	}
	o.token = next

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Info().
		Int64("user_id", tr.UserID).
		Time("expires_at", next.ExpiresAt).
		Msg("Access token refreshed")
	return next.AccessToken, nil
}
