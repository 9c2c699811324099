// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/meli"
	"github.com/vendaval/vendaval/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ShipmentGetter fetches a single shipment record.
type ShipmentGetter interface {
	GetShipment(ctx context.Context, shippingID int64, opts ...meli.CallOption) (*meli.Shipment, error)
}

// Hydrator joins orders with their shipments under bounded concurrency.
// Shipment lookup failures degrade the record instead of failing the run:
// the order keeps a nil shipment and classifies as "other".
type Hydrator struct {
	shipments ShipmentGetter
	workers   int
	now       func() time.Time

	inFlight atomic.Int64
}

// NewHydrator returns a hydrator running at most workers concurrent
// shipment lookups.
func NewHydrator(shipments ShipmentGetter, workers int) *Hydrator {
	if workers < 1 {
		workers = 1
	}
	return &Hydrator{
		shipments: shipments,
		workers:   workers,
		now:       time.Now,
	}
}

// Hydrate enriches a batch of orders, preserving input order. It returns
// early only on context cancellation; per-order lookup failures are logged
// and degrade that record.
func (h *Hydrator) Hydrate(ctx context.Context, batch []meli.Order) ([]EnrichedOrder, error) {
	out := make([]EnrichedOrder, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i, order := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = h.enrichOne(ctx, order)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// HydrateEach enriches a batch of orders and delivers each record to fn as
// it completes, in completion order. fn is called from a single goroutine.
// A non-nil error from fn or a cancelled context stops the run.
func (h *Hydrator) HydrateEach(ctx context.Context, batch []meli.Order, fn func(EnrichedOrder) error) error {
	results := make(chan EnrichedOrder)

	g, ctx := errgroup.WithContext(ctx)

	workers, gctx := errgroup.WithContext(ctx)
	workers.SetLimit(h.workers)
	g.Go(func() error {
		defer close(results)
		for _, order := range batch {
			workers.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				select {
				case results <- h.enrichOne(gctx, order):
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		return workers.Wait()
	})
	g.Go(func() error {
		for rec := range results {
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

// enrichOne fetches the order's shipment, if referenced, and classifies.
func (h *Hydrator) enrichOne(ctx context.Context, order meli.Order) EnrichedOrder {
	var shipment *meli.Shipment
	if order.Shipping.ID != 0 {
		h.inFlight.Add(1)
		metrics.HydratorInFlight.Inc()

		s, err := h.shipments.GetShipment(ctx, order.Shipping.ID)

		metrics.HydratorInFlight.Dec()
		h.inFlight.Add(-1)

		if err != nil {
			logging.Warn().
				Err(err).
				Int64("order_id", order.ID).
				Int64("shipping_id", order.Shipping.ID).
				Msg("Shipment lookup failed, keeping order without enrichment")
		} else {
			shipment = s
		}
	}
	return Enrich(order, shipment, h.now())
}

// InFlight reports the number of shipment lookups currently running.
func (h *Hydrator) InFlight() int64 {
	return h.inFlight.Load()
}
