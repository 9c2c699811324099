// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"testing"
	"time"

	"github.com/vendaval/vendaval/internal/meli"
)

func TestEnrichDegradesWithoutShipment(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	order := meli.Order{ID: 1, Status: "paid"}

	got := Enrich(order, nil, now)
	if got.Shipping != nil {
		t.Errorf("expected nil shipment")
	}
	if got.Group != GroupOther || got.Bucket != BucketOther || got.Form != FormOther {
		t.Errorf("expected other classifications, got group=%q bucket=%q form=%q",
			got.Group, got.Bucket, got.Form)
	}
	if got.Turbo {
		t.Errorf("expected turbo=false")
	}
}

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	shipment := func(status, logistic string, tags ...string) *meli.Shipment {
		return &meli.Shipment{Status: status, LogisticType: logistic, Tags: tags}
	}

	items := []EnrichedOrder{
		Enrich(meli.Order{ID: 1}, shipment("delivered", "fulfillment"), now),
		Enrich(meli.Order{ID: 2}, shipment("delivered", "self_service"), now),
		Enrich(meli.Order{ID: 3}, shipment("shipped", "drop_off"), now),
		Enrich(meli.Order{ID: 4}, shipment("ready_to_ship", "xd_drop_off", "turbo"), now),
		Enrich(meli.Order{ID: 5}, nil, now),
	}

	a := Aggregate(items)

	if a.Total != 5 {
		t.Fatalf("total = %d, want 5", a.Total)
	}
	if a.Stats.Delivered != 2 || a.Stats.InTransit != 1 || a.Stats.ReadyToShip != 1 || a.Stats.Other != 1 {
		t.Errorf("stats = %+v", a.Stats)
	}
	if a.Chips.Delivered != 2 || a.Chips.InTransit != 1 {
		t.Errorf("chips = %+v", a.Chips)
	}
	// No handling deadlines set: ready_to_ship lands in other.
	if a.Chips.Other != 2 {
		t.Errorf("chips.other = %d, want 2", a.Chips.Other)
	}
	if a.Forms.Full != 1 || a.Forms.Flex != 1 || a.Forms.DropOff != 1 || a.Forms.XDDropOff != 1 || a.Forms.Other != 1 {
		t.Errorf("forms = %+v", a.Forms)
	}
	if a.Turbo != 1 {
		t.Errorf("turbo = %d, want 1", a.Turbo)
	}
}
