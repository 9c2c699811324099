// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package meli

import (
	"fmt"

	"github.com/goccy/go-json"
)

// User is the marketplace account returned by /users/me.
type User struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	SiteID    string `json:"site_id"`
	Email     string `json:"email"`
}

// ShippingRef references an order's shipment. The upstream renders it
// either as an object {"id": N} or as a bare numeric id, so it carries a
// custom unmarshaler.
type ShippingRef struct {
	ID int64 `json:"id"`
}

// UnmarshalJSON accepts both {"id": 123} and 123.
func (s *ShippingRef) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '{' {
		type alias ShippingRef
		var a alias
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		*s = ShippingRef(a)
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("shipping reference is neither object nor id: %w", err)
	}
	s.ID = id
	return nil
}

// Buyer is the order's counterpart account.
type Buyer struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// OrderItem is a line item within an order.
type OrderItem struct {
	Item struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"item"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is a primary record paginated from the upstream order search.
// Immutable once fetched.
type Order struct {
	ID          int64       `json:"id"`
	Status      string      `json:"status"`
	DateCreated string      `json:"date_created"`
	DateClosed  string      `json:"date_closed"`
	LastUpdated string      `json:"last_updated"`
	PackID      int64       `json:"pack_id"`
	TotalAmount float64     `json:"total_amount"`
	PaidAmount  float64     `json:"paid_amount"`
	CurrencyID  string      `json:"currency_id"`
	Buyer       Buyer       `json:"buyer"`
	OrderItems  []OrderItem `json:"order_items"`
	Shipping    ShippingRef `json:"shipping"`
	Tags        []string    `json:"tags"`

	// ShippingStatus is a coarse hint some search responses inline.
	// Used only when the full shipment record is unavailable.
	ShippingStatus string `json:"shipping_status,omitempty"`
}

// Paging is the upstream pagination envelope.
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// OrderSearch is the response of the order search endpoint.
type OrderSearch struct {
	Results []Order `json:"results"`
	Paging  Paging  `json:"paging"`

	// ScrollID is present when the upstream offers a scan-style
	// traversal. Unused: the windowed offset traversal dedups by id
	// instead of falling back to scan.
	ScrollID string `json:"scroll_id,omitempty"`
}

// DateField is a nested upstream date value.
type DateField struct {
	Date string `json:"date"`
}

// ShippingOption describes the service chosen for a shipment.
type ShippingOption struct {
	Name                   string    `json:"name"`
	EstimatedHandlingLimit DateField `json:"estimated_handling_limit"`
	EstimatedDeliveryTime  DateField `json:"estimated_delivery_time"`
}

// Shipment is the secondary enrichment record for an order.
type Shipment struct {
	ID             int64          `json:"id"`
	Status         string         `json:"status"`
	Substatus      string         `json:"substatus"`
	LogisticType   string         `json:"logistic_type"`
	Tags           []string       `json:"tags"`
	ShippingOption ShippingOption `json:"shipping_option"`
}

// MultiGetResult is one entry of a batch get-by-ids response: a per-id
// status code plus the payload.
type MultiGetResult struct {
	Code int             `json:"code"`
	Body json.RawMessage `json:"body"`
}
