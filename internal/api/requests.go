// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vendaval/vendaval/internal/orders"
	"github.com/vendaval/vendaval/internal/validation"
)

// SyncRequest is the validated parameter set shared by the blocking sync
// and the streaming endpoint.
type SyncRequest struct {
	From       string `validate:"omitempty"`
	To         string `validate:"omitempty"`
	Basis      string `validate:"omitempty,oneof=created updated closed"`
	WindowDays int    `validate:"omitempty,min=1,max=31"`
}

// PageRequest is the validated parameter set for the paged listing.
// Group and Form narrow the page to one delivery group or fulfillment
// form; empty or "all" means no filter.
type PageRequest struct {
	Page     int    `validate:"min=1"`
	PageSize int    `validate:"min=1,max=1000"`
	Group    string `validate:"omitempty,oneof=all delivered in_transit ready_to_ship other"`
	Form     string `validate:"omitempty,oneof=all full flex drop_off xd_drop_off cross_docking other"`
}

// pageFilter resolves the request's filter fields, treating "all" as no
// filter.
func (req PageRequest) pageFilter() orders.PageFilter {
	var f orders.PageFilter
	if req.Group != "" && req.Group != "all" {
		f.Group = orders.DeliveryGroup(req.Group)
	}
	if req.Form != "" && req.Form != "all" {
		f.Form = orders.FulfillmentForm(req.Form)
	}
	return f
}

// ItemsRequest is the validated parameter set for the item batch lookup.
type ItemsRequest struct {
	IDs        []string `validate:"required,min=1,max=200,dive,required"`
	Attributes []string `validate:"omitempty,max=50"`
}

// dateLayouts accepted for from/to query parameters.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
}

// parseDateParam parses from/to values; a bare date is an error only when
// present and unparseable.
func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want RFC 3339 or YYYY-MM-DD", raw)
}

// parseSyncRequest reads and validates sync/stream query parameters,
// resolving them into pipeline options.
func parseSyncRequest(r *http.Request) (orders.SyncOptions, error) {
	q := r.URL.Query()
	req := SyncRequest{
		From:       q.Get("from"),
		To:         q.Get("to"),
		Basis:      q.Get("basis"),
		WindowDays: getIntParam(r, "windowDays", 0),
	}
	if err := validation.Struct(&req); err != nil {
		return orders.SyncOptions{}, err
	}

	from, err := parseDateParam(req.From)
	if err != nil {
		return orders.SyncOptions{}, err
	}
	to, err := parseDateParam(req.To)
	if err != nil {
		return orders.SyncOptions{}, err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return orders.SyncOptions{}, fmt.Errorf("from %q is after to %q", req.From, req.To)
	}

	return orders.SyncOptions{
		From:       from,
		To:         to,
		Basis:      orders.ParseDateBasis(req.Basis),
		WindowDays: req.WindowDays,
	}, nil
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
