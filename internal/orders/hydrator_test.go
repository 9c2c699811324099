// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vendaval/vendaval/internal/meli"
)

// fakeShipments serves shipment lookups from a map and tracks the peak
// number of concurrent calls.
type fakeShipments struct {
	mu        sync.Mutex
	shipments map[int64]*meli.Shipment
	errs      map[int64]error
	delay     time.Duration

	current atomic.Int64
	peak    atomic.Int64
}

func (f *fakeShipments) GetShipment(ctx context.Context, id int64, _ ...meli.CallOption) (*meli.Shipment, error) {
	cur := f.current.Add(1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer f.current.Add(-1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	if s, ok := f.shipments[id]; ok {
		return s, nil
	}
	return nil, errors.New("shipment not found")
}

func ordersWithShipping(n int) []meli.Order {
	out := make([]meli.Order, n)
	for i := range out {
		out[i] = meli.Order{ID: int64(i + 1), Shipping: meli.ShippingRef{ID: int64(i + 1)}}
	}
	return out
}

func TestHydratePreservesOrderAndJoins(t *testing.T) {
	fake := &fakeShipments{shipments: map[int64]*meli.Shipment{
		1: {ID: 1, Status: "delivered"},
		2: {ID: 2, Status: "shipped"},
		3: {ID: 3, Status: "ready_to_ship"},
	}}
	h := NewHydrator(fake, 4)

	got, err := h.Hydrate(context.Background(), ordersWithShipping(3))
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, rec := range got {
		if rec.ID != int64(i+1) {
			t.Errorf("position %d: id = %d, input order not preserved", i, rec.ID)
		}
		if rec.Shipping == nil {
			t.Errorf("record %d missing shipment", rec.ID)
		}
	}
	if got[0].Group != GroupDelivered || got[1].Group != GroupInTransit || got[2].Group != GroupReadyToShip {
		t.Errorf("groups = %q %q %q", got[0].Group, got[1].Group, got[2].Group)
	}
}

func TestHydrateBoundsConcurrency(t *testing.T) {
	fake := &fakeShipments{
		shipments: map[int64]*meli.Shipment{},
		delay:     5 * time.Millisecond,
	}
	for i := int64(1); i <= 20; i++ {
		fake.shipments[i] = &meli.Shipment{ID: i, Status: "delivered"}
	}

	const workers = 4
	h := NewHydrator(fake, workers)
	if _, err := h.Hydrate(context.Background(), ordersWithShipping(20)); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if peak := fake.peak.Load(); peak > workers {
		t.Errorf("peak concurrency = %d, exceeds limit %d", peak, workers)
	}
	if h.InFlight() != 0 {
		t.Errorf("in-flight = %d after completion", h.InFlight())
	}
}

func TestHydrateEachBoundsConcurrency(t *testing.T) {
	fake := &fakeShipments{
		shipments: map[int64]*meli.Shipment{},
		delay:     5 * time.Millisecond,
	}
	for i := int64(1); i <= 20; i++ {
		fake.shipments[i] = &meli.Shipment{ID: i, Status: "delivered"}
	}

	const workers = 6
	h := NewHydrator(fake, workers)
	delivered := 0
	err := h.HydrateEach(context.Background(), ordersWithShipping(20), func(EnrichedOrder) error {
		delivered++
		return nil
	})
	if err != nil {
		t.Fatalf("HydrateEach: %v", err)
	}
	if delivered != 20 {
		t.Fatalf("delivered %d records, want 20", delivered)
	}
	if peak := fake.peak.Load(); peak > workers {
		t.Errorf("peak concurrency = %d, exceeds limit %d", peak, workers)
	}
	if h.InFlight() != 0 {
		t.Errorf("in-flight = %d after completion", h.InFlight())
	}
}

func TestHydrateDegradesOnLookupFailure(t *testing.T) {
	fake := &fakeShipments{
		shipments: map[int64]*meli.Shipment{1: {ID: 1, Status: "delivered"}},
		errs:      map[int64]error{2: errors.New("boom")},
	}
	h := NewHydrator(fake, 2)

	got, err := h.Hydrate(context.Background(), ordersWithShipping(2))
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if got[0].Shipping == nil {
		t.Errorf("record 1 should carry its shipment")
	}
	if got[1].Shipping != nil {
		t.Errorf("record 2 should degrade to nil shipment")
	}
	if got[1].Group != GroupOther {
		t.Errorf("degraded record group = %q, want %q", got[1].Group, GroupOther)
	}
}

func TestHydrateSkipsLookupWithoutReference(t *testing.T) {
	fake := &fakeShipments{shipments: map[int64]*meli.Shipment{}}
	h := NewHydrator(fake, 2)

	got, err := h.Hydrate(context.Background(), []meli.Order{{ID: 7}})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if got[0].Shipping != nil {
		t.Errorf("expected nil shipment for order without shipping reference")
	}
	if fake.peak.Load() != 0 {
		t.Errorf("lookup was made despite missing shipping reference")
	}
}

func TestHydrateEachDeliversAll(t *testing.T) {
	fake := &fakeShipments{shipments: map[int64]*meli.Shipment{}}
	for i := int64(1); i <= 10; i++ {
		fake.shipments[i] = &meli.Shipment{ID: i, Status: "delivered"}
	}
	h := NewHydrator(fake, 3)

	seen := make(map[int64]bool)
	err := h.HydrateEach(context.Background(), ordersWithShipping(10), func(rec EnrichedOrder) error {
		if seen[rec.ID] {
			t.Errorf("record %d delivered twice", rec.ID)
		}
		seen[rec.ID] = true
		return nil
	})
	if err != nil {
		t.Fatalf("HydrateEach: %v", err)
	}
	if len(seen) != 10 {
		t.Errorf("delivered %d records, want 10", len(seen))
	}
}

func TestHydrateEachStopsOnCallbackError(t *testing.T) {
	fake := &fakeShipments{shipments: map[int64]*meli.Shipment{}}
	for i := int64(1); i <= 10; i++ {
		fake.shipments[i] = &meli.Shipment{ID: i}
	}
	h := NewHydrator(fake, 2)

	sentinel := errors.New("stop")
	n := 0
	err := h.HydrateEach(context.Background(), ordersWithShipping(10), func(EnrichedOrder) error {
		n++
		if n == 3 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if n != 3 {
		t.Errorf("callback ran %d times, want 3", n)
	}
}

func TestHydrateCancelled(t *testing.T) {
	fake := &fakeShipments{
		shipments: map[int64]*meli.Shipment{},
		delay:     50 * time.Millisecond,
	}
	for i := int64(1); i <= 8; i++ {
		fake.shipments[i] = &meli.Shipment{ID: i}
	}
	h := NewHydrator(fake, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if _, err := h.Hydrate(ctx, ordersWithShipping(8)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
