// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vendaval/vendaval/internal/config"
	"github.com/vendaval/vendaval/internal/middleware"
)

// NewRouter assembles the HTTP surface.
func NewRouter(h *Handlers, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if len(cfg.API.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.API.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		if !cfg.API.RateLimitDisabled {
			r.Use(httprate.LimitByIP(cfg.API.RateLimitRequests, cfg.API.RateLimitWindow))
		}

		r.Get("/me", h.Me)
		r.Get("/items", h.Items)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/sync", h.SyncOrders)
			r.Get("/stream", h.StreamOrders)
			r.Get("/stats", h.OrderStats)
			r.Get("/page", h.OrderPage)
		})
	})

	return r
}
