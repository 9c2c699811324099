// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"time"

	"github.com/vendaval/vendaval/internal/meli"
)

// EnrichedOrder is an order joined with its shipment and the derived
// classifications. Shipping is nil when the shipment lookup failed or the
// order carries no shipment reference; classifications degrade to the
// "other" values in that case rather than dropping the record.
type EnrichedOrder struct {
	meli.Order

	Shipping *meli.Shipment  `json:"shipping,omitempty"`
	Group    DeliveryGroup   `json:"group"`
	Bucket   TemporalBucket  `json:"bucket"`
	Form     FulfillmentForm `json:"form"`
	Turbo    bool            `json:"turbo"`
}

// Enrich joins an order with its shipment and derives all classifications.
func Enrich(order meli.Order, shipment *meli.Shipment, now time.Time) EnrichedOrder {
	return EnrichedOrder{
		Order:    order,
		Shipping: shipment,
		Group:    ClassifyDeliveryGroup(shipmentStatus(order, shipment)),
		Bucket:   ClassifyTemporalBucket(order, shipment, now),
		Form:     ClassifyFulfillmentForm(shipment),
		Turbo:    IsExpedited(shipment),
	}
}

// GroupCounts tallies orders per delivery group.
type GroupCounts struct {
	Delivered   int `json:"delivered"`
	InTransit   int `json:"in_transit"`
	ReadyToShip int `json:"ready_to_ship"`
	Other       int `json:"other"`
}

// BucketCounts tallies orders per temporal bucket.
type BucketCounts struct {
	Delivered int `json:"delivered"`
	InTransit int `json:"in_transit"`
	Today     int `json:"today"`
	Upcoming  int `json:"upcoming"`
	Other     int `json:"other"`
}

// FormCounts tallies orders per fulfillment form.
type FormCounts struct {
	Full         int `json:"full"`
	Flex         int `json:"flex"`
	DropOff      int `json:"drop_off"`
	XDDropOff    int `json:"xd_drop_off"`
	CrossDocking int `json:"cross_docking"`
	Other        int `json:"other"`
}

// Aggregates is the dashboard summary over a set of enriched orders.
type Aggregates struct {
	Total int          `json:"total"`
	Stats GroupCounts  `json:"stats"`
	Chips BucketCounts `json:"chips"`
	Forms FormCounts   `json:"forms"`
	Turbo int          `json:"turbo"`
}

// Add folds one enriched order into the aggregates.
func (a *Aggregates) Add(o EnrichedOrder) {
	a.Total++

	switch o.Group {
	case GroupDelivered:
		a.Stats.Delivered++
	case GroupInTransit:
		a.Stats.InTransit++
	case GroupReadyToShip:
		a.Stats.ReadyToShip++
	default:
		a.Stats.Other++
	}

	switch o.Bucket {
	case BucketDelivered:
		a.Chips.Delivered++
	case BucketInTransit:
		a.Chips.InTransit++
	case BucketToday:
		a.Chips.Today++
	case BucketUpcoming:
		a.Chips.Upcoming++
	default:
		a.Chips.Other++
	}

	switch o.Form {
	case FormFull:
		a.Forms.Full++
	case FormFlex:
		a.Forms.Flex++
	case FormDropOff:
		a.Forms.DropOff++
	case FormXDDropOff:
		a.Forms.XDDropOff++
	case FormCrossDocking:
		a.Forms.CrossDocking++
	default:
		a.Forms.Other++
	}

	if o.Turbo {
		a.Turbo++
	}
}

// Aggregate computes the summary for a slice of enriched orders.
func Aggregate(items []EnrichedOrder) Aggregates {
	var a Aggregates
	for _, o := range items {
		a.Add(o)
	}
	return a
}
