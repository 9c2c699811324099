// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/vendaval/vendaval/internal/config"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "token.json")
	store := NewFileStore(path)

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("load before save: err = %v, want ErrNoToken", err)
	}

	want := Token{
		AccessToken:  "APP_USR-abc",
		RefreshToken: "TG-def",
		TokenType:    "Bearer",
		UserID:       777,
		ExpiresAt:    time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"far future", now.Add(6 * time.Hour), false},
		{"inside safety margin", now.Add(30 * time.Second), true},
		{"already past", now.Add(-time.Minute), true},
		{"no deadline", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := Token{ExpiresAt: tt.expiresAt}
			if got := tok.Expired(now); got != tt.want {
				t.Errorf("Expired = %v, want %v", got, tt.want)
			}
		})
	}
}

// newAuthServer fakes the authorization server's refresh grant.
func newAuthServer(t *testing.T, rotated string, status int) (*httptest.Server, *int) {
	t.Helper()
	calls := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "app-id" {
			t.Errorf("client_id = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got == "" {
			t.Errorf("refresh_token missing")
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "APP_USR-new",
			"token_type":    "Bearer",
			"expires_in":    21600,
			"user_id":       777,
			"refresh_token": rotated,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newOAuth(srvURL string, store TokenStore) *OAuth {
	return NewOAuth(&config.MeliConfig{
		AuthURL: srvURL,
		AppID:   "app-id",
		Timeout: 5 * time.Second,
	}, store)
}

func TestRefreshRotatesAndPersists(t *testing.T) {
	srv, _ := newAuthServer(t, "TG-rotated", http.StatusOK)
	store := NewMemoryStore(Token{AccessToken: "stale", RefreshToken: "TG-old"})
	o := newOAuth(srv.URL, store)

	got, err := o.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got != "APP_USR-new" {
		t.Errorf("access token = %q", got)
	}

	saved, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load after refresh: %v", err)
	}
	if saved.RefreshToken != "TG-rotated" {
		t.Errorf("refresh token = %q, rotation not persisted", saved.RefreshToken)
	}
	if saved.ExpiresAt.IsZero() {
		t.Errorf("expiry not recorded")
	}
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv, _ := newAuthServer(t, "", http.StatusOK)
	store := NewMemoryStore(Token{RefreshToken: "TG-keep"})
	o := newOAuth(srv.URL, store)

	if _, err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	saved, _ := store.Load(context.Background())
	if saved.RefreshToken != "TG-keep" {
		t.Errorf("refresh token = %q, want previous value kept", saved.RefreshToken)
	}
}

func TestRefreshRejected(t *testing.T) {
	srv, _ := newAuthServer(t, "", http.StatusBadRequest)
	o := newOAuth(srv.URL, NewMemoryStore(Token{RefreshToken: "TG-old"}))

	if _, err := o.Refresh(context.Background()); err == nil {
		t.Fatal("expected error on rejected grant")
	}
}

func TestRefreshWithoutCredential(t *testing.T) {
	srv, calls := newAuthServer(t, "", http.StatusOK)
	o := newOAuth(srv.URL, NewMemoryStore(Token{}))

	if _, err := o.Refresh(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if *calls != 0 {
		t.Errorf("authorization server was called without a refresh token")
	}
}

func TestAccessTokenServesFreshWithoutGrant(t *testing.T) {
	srv, calls := newAuthServer(t, "", http.StatusOK)
	store := NewMemoryStore(Token{
		AccessToken:  "APP_USR-live",
		RefreshToken: "TG-old",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	o := newOAuth(srv.URL, store)

	got, err := o.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if got != "APP_USR-live" {
		t.Errorf("access token = %q", got)
	}
	if *calls != 0 {
		t.Errorf("fresh token triggered %d grants", *calls)
	}
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	srv, calls := newAuthServer(t, "TG-rotated", http.StatusOK)
	store := NewMemoryStore(Token{
		AccessToken:  "APP_USR-stale",
		RefreshToken: "TG-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	o := newOAuth(srv.URL, store)

	got, err := o.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if got != "APP_USR-new" {
		t.Errorf("access token = %q, want refreshed value", got)
	}
	if *calls != 1 {
		t.Errorf("grants = %d, want 1", *calls)
	}
}
