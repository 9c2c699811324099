// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

// Package auth manages the OAuth credential used against the marketplace:
// an access token plus the rotating refresh token that renews it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// ErrNoToken is returned when no credential has been stored yet. The
// operator must complete the initial authorization out of band.
var ErrNoToken = errors.New("no stored credential")

// Token is the persisted OAuth credential. The upstream rotates the
// refresh token on every grant, so the stored value must be replaced
// after each refresh.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	UserID       int64     `json:"user_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its deadline, with a
// safety margin so a token about to lapse is treated as gone.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expiryMargin).Before(t.ExpiresAt)
}

const expiryMargin = 60 * time.Second

// TokenStore persists the credential across restarts.
type TokenStore interface {
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, t Token) error
}

// FileStore keeps the credential as a JSON file with owner-only
// permissions.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored credential. A missing file maps to ErrNoToken.
func (s *FileStore) Load(ctx context.Context) (Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Token{}, ErrNoToken
		}
		return Token{}, fmt.Errorf("reading credential file: %w", err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}, fmt.Errorf("parsing credential file: %w", err)
	}
	if t.AccessToken == "" && t.RefreshToken == "" {
		return Token{}, ErrNoToken
	}
	return t, nil
}

// Save writes the credential atomically via rename.
func (s *FileStore) Save(ctx context.Context, t Token) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating credential directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}

// MemoryStore keeps the credential in memory only. Used in tests and in
// deployments that inject a fresh credential at startup.
type MemoryStore struct {
	token Token
	set   bool
}

// NewMemoryStore returns a store seeded with t when t is non-zero.
func NewMemoryStore(t Token) *MemoryStore {
	return &MemoryStore{token: t, set: t.AccessToken != "" || t.RefreshToken != ""}
}

func (s *MemoryStore) Load(ctx context.Context) (Token, error) {
	if !s.set {
		return Token{}, ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryStore) Save(ctx context.Context, t Token) error {
	s.token = t
	s.set = true
	return nil
}
