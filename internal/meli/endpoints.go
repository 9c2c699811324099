// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package meli

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// OrderSearchQuery parameterizes one page of the order search endpoint.
// FromKey/ToKey are the date-basis-specific filter keys chosen by the
// caller (e.g. order.date_created.from / order.date_created.to).
type OrderSearchQuery struct {
	Seller  int64
	Sort    string
	Limit   int
	Offset  int
	FromKey string
	FromVal string
	ToKey   string
	ToVal   string
}

// SearchOrders fetches one page of the seller's orders.
func (c *Client) SearchOrders(ctx context.Context, q OrderSearchQuery, opts ...CallOption) (*OrderSearch, error) {
	params := url.Values{}
	params.Set("seller", strconv.FormatInt(q.Seller, 10))
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.FromKey != "" {
		params.Set(q.FromKey, q.FromVal)
	}
	if q.ToKey != "" {
		params.Set(q.ToKey, q.ToVal)
	}

	var out OrderSearch
	if err := c.Get(ctx, "/orders/search?"+params.Encode(), &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetShipment fetches the shipment detail for a single shipping id.
func (c *Client) GetShipment(ctx context.Context, shippingID int64, opts ...CallOption) (*Shipment, error) {
	var out Shipment
	if err := c.Get(ctx, fmt.Sprintf("/shipments/%d", shippingID), &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the account owning the current credential.
func (c *Client) Me(ctx context.Context, opts ...CallOption) (*User, error) {
	var out User
	if err := c.Get(ctx, "/users/me", &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// multiGetChunkSize is the upstream's maximum ids per batch get call.
const multiGetChunkSize = 20

// MultiGetItems fetches items in batches of at most 20 ids per call,
// optionally projecting attributes. Results preserve the input order; each
// entry carries its own per-id status code.
func (c *Client) MultiGetItems(ctx context.Context, ids []string, attributes []string, opts ...CallOption) ([]MultiGetResult, error) {
	results := make([]MultiGetResult, 0, len(ids))
	for start := 0; start < len(ids); start += multiGetChunkSize {
		end := start + multiGetChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{}
		params.Set("ids", strings.Join(ids[start:end], ","))
		if len(attributes) > 0 {
			params.Set("attributes", strings.Join(attributes, ","))
		}

		var chunk []MultiGetResult
		if err := c.Get(ctx, "/items?"+params.Encode(), &chunk, opts...); err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}
