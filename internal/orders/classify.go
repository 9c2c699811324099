// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"strings"
	"time"

	"github.com/vendaval/vendaval/internal/meli"
)

// DeliveryGroup is the coarse shipping state of an order. Closed
// enumeration: unmapped upstream statuses always fall into GroupOther.
type DeliveryGroup string

const (
	GroupDelivered   DeliveryGroup = "delivered"
	GroupInTransit   DeliveryGroup = "in_transit"
	GroupReadyToShip DeliveryGroup = "ready_to_ship"
	GroupOther       DeliveryGroup = "other"
)

// TemporalBucket positions an order relative to its handling deadline.
type TemporalBucket string

const (
	BucketDelivered TemporalBucket = "delivered"
	BucketInTransit TemporalBucket = "in_transit"
	BucketToday     TemporalBucket = "today"
	BucketUpcoming  TemporalBucket = "upcoming"
	BucketOther     TemporalBucket = "other"
)

// FulfillmentForm is the logistics mode used for a shipment.
type FulfillmentForm string

const (
	FormFull         FulfillmentForm = "full"
	FormFlex         FulfillmentForm = "flex"
	FormDropOff      FulfillmentForm = "drop_off"
	FormXDDropOff    FulfillmentForm = "xd_drop_off"
	FormCrossDocking FulfillmentForm = "cross_docking"
	FormOther        FulfillmentForm = "other"
)

// deliveryGroups maps upstream shipment statuses to delivery groups.
// Anything absent maps to GroupOther.
var deliveryGroups = map[string]DeliveryGroup{
	"delivered":     GroupDelivered,
	"ready_to_ship": GroupReadyToShip,
	"pending":       GroupReadyToShip,
	"in_transit":    GroupInTransit,
	"shipped":       GroupInTransit,
	"handling":      GroupInTransit,
}

// ClassifyDeliveryGroup maps a raw shipment status to its delivery group.
// Total: unknown statuses return GroupOther, never an empty value.
func ClassifyDeliveryGroup(status string) DeliveryGroup {
	if group, ok := deliveryGroups[strings.ToLower(strings.TrimSpace(status))]; ok {
		return group
	}
	return GroupOther
}

// ClassifyTemporalBucket buckets an order against "today". Delivered and
// in-transit shipments keep their own buckets; everything else is compared
// by the shipment's estimated handling deadline: same calendar day as now
// is BucketToday, a later day is BucketUpcoming, anything else (including
// a missing or unparseable deadline) is BucketOther.
func ClassifyTemporalBucket(order meli.Order, shipment *meli.Shipment, now time.Time) TemporalBucket {
	switch ClassifyDeliveryGroup(shipmentStatus(order, shipment)) {
	case GroupDelivered:
		return BucketDelivered
	case GroupInTransit:
		return BucketInTransit
	}

	if shipment == nil {
		return BucketOther
	}
	deadline, ok := parseUpstreamDate(shipment.ShippingOption.EstimatedHandlingLimit.Date)
	if !ok {
		return BucketOther
	}

	nowY, nowM, nowD := now.Date()
	dlY, dlM, dlD := deadline.Date()
	switch {
	case nowY == dlY && nowM == dlM && nowD == dlD:
		return BucketToday
	case deadline.After(now):
		return BucketUpcoming
	default:
		return BucketOther
	}
}

// formMatchers pairs a fulfillment form with the substrings that select it.
// Checked in order, first match wins: xd_drop_off must come before drop_off
// because the latter is a substring of the former.
var formMatchers = []struct {
	form    FulfillmentForm
	needles []string
}{
	{FormFull, []string{"fulfillment", "full"}},
	{FormFlex, []string{"self_service", "flex"}},
	{FormXDDropOff, []string{"xd_drop_off"}},
	{FormDropOff, []string{"drop_off"}},
	{FormCrossDocking, []string{"cross_docking"}},
}

// ClassifyFulfillmentForm maps a shipment's logistic type to its
// fulfillment form by substring matching in fixed priority order.
func ClassifyFulfillmentForm(shipment *meli.Shipment) FulfillmentForm {
	if shipment == nil {
		return FormOther
	}
	logistic := strings.ToLower(shipment.LogisticType)
	for _, m := range formMatchers {
		for _, needle := range m.needles {
			if strings.Contains(logistic, needle) {
				return m.form
			}
		}
	}
	return FormOther
}

// IsExpedited reports whether the shipment uses a premium fast path:
// a "turbo" tag, or a service name carrying "turbo" or "expedited".
// Case-insensitive.
func IsExpedited(shipment *meli.Shipment) bool {
	if shipment == nil {
		return false
	}
	for _, tag := range shipment.Tags {
		if strings.EqualFold(tag, "turbo") {
			return true
		}
	}
	name := strings.ToLower(shipment.ShippingOption.Name)
	return strings.Contains(name, "turbo") || strings.Contains(name, "expedited")
}

// shipmentStatus resolves the status used for classification: the shipment's
// own status when present, otherwise the order's shipping status hint.
func shipmentStatus(order meli.Order, shipment *meli.Shipment) string {
	if shipment != nil {
		return shipment.Status
	}
	return order.ShippingStatus
}

// upstreamDateLayouts lists the formats the upstream uses for nested dates.
var upstreamDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// parseUpstreamDate parses a nested upstream date value.
func parseUpstreamDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range upstreamDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
