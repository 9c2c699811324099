// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vendaval/vendaval/internal/auth"
	"github.com/vendaval/vendaval/internal/config"
	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/meli"
	"github.com/vendaval/vendaval/internal/orders"
	"github.com/vendaval/vendaval/internal/validation"
)

// Upstream is the slice of the marketplace client the handlers call
// directly, beyond what the sync pipeline already covers.
type Upstream interface {
	orders.SearchAPI
	MultiGetItems(ctx context.Context, ids, attributes []string, opts ...meli.CallOption) ([]meli.MultiGetResult, error)
}

// Handlers serves the dashboard API.
type Handlers struct {
	svc      *orders.Service
	upstream Upstream
	cfg      *config.Config
}

// NewHandlers wires the handler set.
func NewHandlers(svc *orders.Service, upstream Upstream, cfg *config.Config) *Handlers {
	return &Handlers{svc: svc, upstream: upstream, cfg: cfg}
}

// SyncPayload is the blocking sync response body.
type SyncPayload struct {
	OK       bool               `json:"ok"`
	Total    int                `json:"total"`
	Stats    orders.Aggregates  `json:"stats"`
	SyncedAt time.Time          `json:"syncedAt"`
	Range    orders.DateWindow  `json:"range"`
	Basis    orders.DateBasis   `json:"basis"`
}

// SyncOrders runs a full blocking sync.
// POST /api/orders/sync
func (h *Handlers) SyncOrders(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	opts, err := parseSyncRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	res, err := h.svc.SyncAll(r.Context(), opts)
	if err != nil {
		h.respondUpstreamError(w, r, err, "Sync failed")
		return
	}

	respondSuccess(w, r, SyncPayload{
		OK:       res.WindowErrors == 0,
		Total:    res.Total,
		Stats:    res.Aggregates,
		SyncedAt: res.SyncedAt,
		Range:    orders.DateWindow{Start: res.From, End: res.To},
		Basis:    res.Basis,
	}, started)
}

// StreamOrders streams the sync pipeline as server-sent events.
// GET /api/orders/stream
func (h *Handlers) StreamOrders(w http.ResponseWriter, r *http.Request) {
	opts, err := parseSyncRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	sink, err := newSSEWriter(w, r, h.cfg.Sync.KeepAliveInterval)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
		return
	}
	defer sink.Close()

	if err := h.svc.StreamAll(r.Context(), sink, opts); err != nil {
		// Headers are long gone; the error event, if deliverable, was
		// already sent by the pipeline.
		logging.Warn().Err(err).Msg("Order stream ended with error")
	}
}

// StatsPayload is the cached dashboard summary.
type StatsPayload struct {
	Total    int                 `json:"total"`
	Stats    orders.GroupCounts  `json:"stats"`
	Chips    orders.BucketCounts `json:"chips"`
	Forms    orders.FormCounts   `json:"forms"`
	Turbo    int                 `json:"turbo"`
	SyncedAt time.Time           `json:"syncedAt"`
}

// OrderStats returns aggregates over the cached result set.
// GET /api/orders/stats
func (h *Handlers) OrderStats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	aggs := h.svc.Store().Aggregates()
	respondSuccess(w, r, StatsPayload{
		Total:    aggs.Total,
		Stats:    aggs.Stats,
		Chips:    aggs.Chips,
		Forms:    aggs.Forms,
		Turbo:    aggs.Turbo,
		SyncedAt: h.svc.Store().SyncedAt(),
	}, started)
}

// OrderPage returns one page of the cached result set, optionally
// filtered by delivery group and fulfillment form.
// GET /api/orders/page?page=1&pageSize=20&group=all&form=all
func (h *Handlers) OrderPage(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	req := PageRequest{
		Page:     getIntParam(r, "page", 1),
		PageSize: getIntParam(r, "pageSize", h.cfg.API.DefaultPageSize),
		Group:    r.URL.Query().Get("group"),
		Form:     r.URL.Query().Get("form"),
	}
	if req.PageSize > h.cfg.API.MaxPageSize {
		req.PageSize = h.cfg.API.MaxPageSize
	}
	if err := validation.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), err.Fields)
		return
	}

	respondSuccess(w, r, h.svc.Store().Page(req.Page, req.PageSize, req.pageFilter()), started)
}

// Me returns the account owning the configured credential.
// GET /api/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, err := h.upstream.Me(r.Context())
	if err != nil {
		h.respondUpstreamError(w, r, err, "Account lookup failed")
		return
	}
	respondSuccess(w, r, user, started)
}

// Items batch-fetches item details.
// GET /api/items?ids=MLB1,MLB2&attributes=id,title
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	req := ItemsRequest{
		IDs:        splitCSV(r.URL.Query().Get("ids")),
		Attributes: splitCSV(r.URL.Query().Get("attributes")),
	}
	if err := validation.Struct(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), err.Fields)
		return
	}

	results, err := h.upstream.MultiGetItems(r.Context(), req.IDs, req.Attributes)
	if err != nil {
		h.respondUpstreamError(w, r, err, "Item lookup failed")
		return
	}
	respondSuccess(w, r, results, started)
}

// Health reports liveness.
// GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, r, map[string]any{
		"status":       "ok",
		"cachedOrders": h.svc.Store().Len(),
		"syncedAt":     h.svc.Store().SyncedAt(),
	}, started)
}

// respondUpstreamError maps pipeline and client errors onto HTTP statuses.
func (h *Handlers) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logging.Error().Err(err).Msg(msg)

	switch {
	case errors.Is(err, context.Canceled):
		// Client disconnected; nothing to write.
	case errors.Is(err, auth.ErrNoToken):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"No marketplace credential configured", nil)
	case meli.IsUnauthorized(err):
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized,
			"Marketplace credential rejected", nil)
	case meli.IsPermanent(err):
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, msg, err.Error())
	default:
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, msg, nil)
	}
}

// splitCSV parses a comma-separated parameter, dropping empty entries.
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
