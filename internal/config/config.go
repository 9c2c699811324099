// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

// Package config provides layered configuration for Vendaval.
//
// Configuration is loaded with Koanf v2 from three layers, lowest to highest
// precedence: built-in defaults, an optional YAML file, and environment
// variables. See koanf.go for the loading pipeline.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Meli    MeliConfig    `koanf:"meli"`
	Sync    SyncConfig    `koanf:"sync"`
	API     APIConfig     `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MeliConfig holds settings for the upstream marketplace API client.
type MeliConfig struct {
	// APIURL is the base URL of the marketplace REST API.
	APIURL string `koanf:"api_url"`

	// AuthURL is the base URL of the marketplace OAuth endpoint.
	AuthURL string `koanf:"auth_url"`

	// SiteID is the marketplace site (e.g. MLB, MLA).
	SiteID string `koanf:"site_id"`

	// AppID and ClientSecret identify this application for token refresh.
	AppID        string `koanf:"app_id"`
	ClientSecret string `koanf:"client_secret"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries is the number of additional attempts for transient failures.
	MaxRetries int `koanf:"max_retries"`

	// BackoffBase and BackoffCap bound the exponential retry delay.
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffCap  time.Duration `koanf:"backoff_cap"`

	// MaxRetryAfter caps upstream Retry-After hints. Zero means no cap.
	MaxRetryAfter time.Duration `koanf:"max_retry_after"`

	// RequestsPerSecond throttles outbound calls. Zero disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// BreakerEnabled wraps search calls in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`

	// UserAgent is sent on every outbound request.
	UserAgent string `koanf:"user_agent"`
}

// SyncConfig holds settings for the order sync pipeline.
type SyncConfig struct {
	// WindowDays is the default date window span, clamped to [1, 31].
	WindowDays int `koanf:"window_days"`

	// Lookback is the default range when the caller omits from/to.
	Lookback time.Duration `koanf:"lookback"`

	// PageSize is the upstream search page size.
	PageSize int `koanf:"page_size"`

	// MaxOffset is the safety cap on pagination offset per window.
	MaxOffset int `koanf:"max_offset"`

	// HydrateWorkers bounds concurrent shipment lookups in blocking sync.
	HydrateWorkers int `koanf:"hydrate_workers"`

	// StreamWorkers bounds concurrent shipment lookups while streaming.
	StreamWorkers int `koanf:"stream_workers"`

	// KeepAliveInterval is the SSE keep-alive period.
	KeepAliveInterval time.Duration `koanf:"keepalive_interval"`

	// ProgressEvery emits a progress event every N rows when the
	// expected total is unknown.
	ProgressEvery int `koanf:"progress_every"`
}

// APIConfig holds settings for the exposed HTTP API.
type APIConfig struct {
	DefaultPageSize   int           `koanf:"default_page_size"`
	MaxPageSize       int           `koanf:"max_page_size"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// defaultConfig returns a Config with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // streaming responses must not be cut off
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Meli: MeliConfig{
			APIURL:            "https://api.mercadolibre.com",
			AuthURL:           "https://auth.mercadolivre.com.br",
			SiteID:            "MLB",
			Timeout:           15 * time.Second,
			MaxRetries:        4,
			BackoffBase:       300 * time.Millisecond,
			BackoffCap:        5 * time.Second,
			MaxRetryAfter:     30 * time.Second,
			RequestsPerSecond: 0, // unlimited unless configured
			BreakerEnabled:    true,
			UserAgent:         "Vendaval/dev",
		},
		Sync: SyncConfig{
			WindowDays:        30,
			Lookback:          90 * 24 * time.Hour,
			PageSize:          50,
			MaxOffset:         10000,
			HydrateWorkers:    8,
			StreamWorkers:     6,
			KeepAliveInterval: 25 * time.Second,
			ProgressEvery:     25,
		},
		API: APIConfig{
			DefaultPageSize:   20,
			MaxPageSize:       100,
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
	}
}

// Validate checks configuration invariants. It is called by Load after all
// layers are applied, so failures here name the effective value.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Meli.APIURL == "" {
		return fmt.Errorf("meli.api_url is required")
	}
	if c.Meli.MaxRetries < 0 {
		return fmt.Errorf("meli.max_retries must be >= 0, got %d", c.Meli.MaxRetries)
	}
	if c.Meli.BackoffBase <= 0 {
		return fmt.Errorf("meli.backoff_base must be > 0, got %s", c.Meli.BackoffBase)
	}
	if c.Meli.BackoffCap < c.Meli.BackoffBase {
		return fmt.Errorf("meli.backoff_cap (%s) must be >= meli.backoff_base (%s)",
			c.Meli.BackoffCap, c.Meli.BackoffBase)
	}
	if c.Sync.WindowDays < 1 || c.Sync.WindowDays > 31 {
		return fmt.Errorf("sync.window_days must be in [1, 31], got %d", c.Sync.WindowDays)
	}
	if c.Sync.PageSize < 1 {
		return fmt.Errorf("sync.page_size must be >= 1, got %d", c.Sync.PageSize)
	}
	if c.Sync.HydrateWorkers < 1 || c.Sync.StreamWorkers < 1 {
		return fmt.Errorf("sync worker counts must be >= 1, got hydrate=%d stream=%d",
			c.Sync.HydrateWorkers, c.Sync.StreamWorkers)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be >= api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}
