// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

// Package main is the entry point for the Vendaval server.
//
// Vendaval proxies a seller's marketplace account into an operations
// dashboard: it syncs orders over windowed date ranges, enriches them with
// shipment data under bounded concurrency, classifies them for the
// dashboard, and serves the result as JSON endpoints plus a server-sent
// event stream.
//
// The server initializes components in order:
//
//  1. Configuration: Koanf v2 layering defaults, optional YAML file, and
//     VENDAVAL_* environment variables
//  2. Logging: zerolog, JSON or console format
//  3. Credential: OAuth token source backed by a JSON file store
//  4. Upstream client: retrying marketplace client behind a circuit breaker
//  5. Pipeline: order sync service with its in-memory result cache
//  6. HTTP server: chi router with the dashboard API, /healthz, /metrics
//
// Shutdown on SIGINT/SIGTERM is graceful: the listener stops accepting,
// in-flight requests (including open streams) get the configured drain
// timeout, then the process exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vendaval/vendaval/internal/api"
	"github.com/vendaval/vendaval/internal/auth"
	"github.com/vendaval/vendaval/internal/config"
	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/meli"
	"github.com/vendaval/vendaval/internal/orders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("site", cfg.Meli.SiteID).
		Str("api_url", cfg.Meli.APIURL).
		Msg("Starting Vendaval")

	tokenPath := os.Getenv("VENDAVAL_TOKEN_FILE")
	if tokenPath == "" {
		tokenPath = "data/token.json"
	}
	tokens := auth.NewOAuth(&cfg.Meli, auth.NewFileStore(tokenPath))

	client := meli.NewClient(&cfg.Meli, tokens)
	var upstream api.Upstream = client
	if cfg.Meli.BreakerEnabled {
		upstream = meli.NewBreakerClient(client)
		logging.Info().Msg("Upstream circuit breaker enabled")
	}

	store := orders.NewStore()
	service := orders.NewService(upstream, store, cfg.Sync)

	handlers := api.NewHandlers(service, upstream, cfg)
	router := api.NewRouter(handlers, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Forced shutdown after drain timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
