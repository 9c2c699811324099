// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

// Package orders implements the order sync pipeline: windowed upstream
// traversal, bounded-concurrency shipment hydration, classification, and
// an in-memory result cache serving the dashboard endpoints.
package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vendaval/vendaval/internal/config"
	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/meli"
	"github.com/vendaval/vendaval/internal/metrics"
)

// SearchAPI is the slice of the upstream client the sync pipeline needs.
// Both the plain client and the breaker-wrapped client satisfy it.
type SearchAPI interface {
	ShipmentGetter
	SearchOrders(ctx context.Context, q meli.OrderSearchQuery, opts ...meli.CallOption) (*meli.OrderSearch, error)
	Me(ctx context.Context, opts ...meli.CallOption) (*meli.User, error)
}

// DateBasis selects which order timestamp the date range filters on.
type DateBasis string

const (
	BasisCreated DateBasis = "created"
	BasisUpdated DateBasis = "updated"
	BasisClosed  DateBasis = "closed"
)

// dateFilterKeys maps a basis to the upstream search filter key pair.
var dateFilterKeys = map[DateBasis][2]string{
	BasisCreated: {"order.date_created.from", "order.date_created.to"},
	BasisUpdated: {"order.date_last_updated.from", "order.date_last_updated.to"},
	BasisClosed:  {"order.date_closed.from", "order.date_closed.to"},
}

// ParseDateBasis normalizes a basis string, defaulting to created.
func ParseDateBasis(s string) DateBasis {
	switch DateBasis(s) {
	case BasisUpdated:
		return BasisUpdated
	case BasisClosed:
		return BasisClosed
	default:
		return BasisCreated
	}
}

// SyncOptions parameterizes one sync or stream run. Zero values take the
// configured defaults via normalize.
type SyncOptions struct {
	From       time.Time
	To         time.Time
	Basis      DateBasis
	WindowDays int
}

// SyncResult is the outcome of a blocking sync run.
type SyncResult struct {
	Total      int
	Aggregates Aggregates
	SyncedAt   time.Time
	From       time.Time
	To         time.Time
	Basis      DateBasis

	// WindowErrors counts date windows skipped after an upstream failure.
	WindowErrors int
}

// Service orchestrates the sync pipeline against one seller account.
type Service struct {
	api   SearchAPI
	store *Store
	cfg   config.SyncConfig
	now   func() time.Time

	mu       sync.Mutex
	sellerID int64
}

// NewService wires the pipeline. The store is owned by the caller so the
// HTTP layer can read it independently.
func NewService(api SearchAPI, store *Store, cfg config.SyncConfig) *Service {
	return &Service{
		api:   api,
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Store exposes the result cache backing this service.
func (s *Service) Store() *Store {
	return s.store
}

// normalize fills unset options from configured defaults.
func (s *Service) normalize(opts SyncOptions) SyncOptions {
	if opts.To.IsZero() {
		opts.To = s.now().UTC()
	}
	if opts.From.IsZero() {
		opts.From = opts.To.Add(-s.cfg.Lookback)
	}
	if opts.Basis == "" {
		opts.Basis = BasisCreated
	}
	if opts.WindowDays == 0 {
		opts.WindowDays = s.cfg.WindowDays
	}
	opts.WindowDays = ClampWindowDays(opts.WindowDays)
	return opts
}

// SellerID resolves and caches the seller account id. The first resolution
// retries transient failures with exponential backoff; permanent upstream
// rejections fail fast.
func (s *Service) SellerID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sellerID != 0 {
		return s.sellerID, nil
	}

	op := func() (int64, error) {
		user, err := s.api.Me(ctx)
		if err != nil {
			if meli.IsPermanent(err) || meli.IsUnauthorized(err) {
				return 0, backoff.Permanent(err)
			}
			return 0, err
		}
		return user.ID, nil
	}

	id, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return 0, fmt.Errorf("resolving seller identity: %w", err)
	}

	s.sellerID = id
	logging.Info().Int64("seller_id", id).Msg("Resolved seller identity")
	return id, nil
}

// fetchWindow pages through one date window, newest first, feeding each
// page's results and paging envelope to emit. Deduplication is the
// caller's concern. Pagination stops at a page shorter than the page size
// or at the configured offset cap; the upstream-reported total is passed
// through but not trusted to end the crawl.
func (s *Service) fetchWindow(ctx context.Context, sellerID int64, w DateWindow, basis DateBasis, emit func([]meli.Order, meli.Paging) error) error {
	keys := dateFilterKeys[basis]
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.api.SearchOrders(ctx, meli.OrderSearchQuery{
			Seller:  sellerID,
			Sort:    "date_desc",
			Limit:   s.cfg.PageSize,
			Offset:  offset,
			FromKey: keys[0],
			FromVal: w.Start.Format(time.RFC3339),
			ToKey:   keys[1],
			ToVal:   w.End.Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("searching orders at offset %d: %w", offset, err)
		}

		if len(page.Results) == 0 {
			return nil
		}
		if err := emit(page.Results, page.Paging); err != nil {
			return err
		}

		offset += len(page.Results)
		if len(page.Results) < s.cfg.PageSize {
			return nil
		}
		if offset >= s.cfg.MaxOffset {
			logging.Warn().
				Int("offset", offset).
				Int("total", page.Paging.Total).
				Time("window_from", w.Start).
				Time("window_to", w.End).
				Msg("Offset cap reached, truncating window")
			return nil
		}
	}
}

// SyncAll runs a full blocking sync: traverses the range window by window,
// hydrates each order's shipment, and atomically replaces the result cache.
// A window that fails after client-level retries is skipped and counted;
// the remaining windows still run. Cancellation aborts without touching
// the cache.
func (s *Service) SyncAll(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	opts = s.normalize(opts)

	sellerID, err := s.SellerID(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	hydrator := NewHydrator(s.api, s.cfg.HydrateWorkers)

	seen := make(map[int64]struct{})
	var collected []meli.Order
	windowErrors := 0

	for w := range Windows(opts.From, opts.To, opts.WindowDays) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := s.fetchWindow(ctx, sellerID, w, opts.Basis, func(batch []meli.Order, _ meli.Paging) error {
			for _, order := range batch {
				if _, dup := seen[order.ID]; dup {
					continue
				}
				seen[order.ID] = struct{}{}
				collected = append(collected, order)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			windowErrors++
			metrics.WindowFetchErrors.Inc()
			logging.Error().
				Err(err).
				Time("window_from", w.Start).
				Time("window_to", w.End).
				Msg("Window fetch failed, skipping window")
		}
	}

	enriched, err := hydrator.Hydrate(ctx, collected)
	if err != nil {
		return nil, err
	}

	syncedAt := s.now().UTC()
	s.store.Replace(enriched, syncedAt)

	aggs := Aggregate(enriched)
	duration := s.now().Sub(start)
	metrics.SyncDuration.WithLabelValues("sync").Observe(duration.Seconds())
	metrics.SyncRecords.WithLabelValues("sync", "total").Add(float64(aggs.Total))

	logging.Info().
		Int("total", aggs.Total).
		Int("window_errors", windowErrors).
		Dur("duration", duration).
		Str("basis", string(opts.Basis)).
		Msg("Sync completed")

	return &SyncResult{
		Total:        aggs.Total,
		Aggregates:   aggs,
		SyncedAt:     syncedAt,
		From:         opts.From,
		To:           opts.To,
		Basis:        opts.Basis,
		WindowErrors: windowErrors,
	}, nil
}
