// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package meli

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/metrics"
)

// BreakerClient wraps Client with a circuit breaker so a misbehaving
// upstream cannot soak every sync in timeouts. The breaker sits outside the
// retry loop: a call that exhausts its retries counts as one failure.
//
// The breaker uses real time for its interval and timeout calculations;
// tests target the wrapped client directly.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewBreakerClient creates a circuit-breaker-protected marketplace client.
// The circuit opens after a 60% failure rate over at least 10 requests,
// stays open for 2 minutes, and allows 3 probes in half-open state.
func NewBreakerClient(client *Client) *BreakerClient {
	const cbName = "meli-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// execute runs a client call under the breaker.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// SearchOrders fetches one page of orders under breaker protection.
func (b *BreakerClient) SearchOrders(ctx context.Context, q OrderSearchQuery, opts ...CallOption) (*OrderSearch, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.SearchOrders(ctx, q, opts...)
	})
	return castResult[OrderSearch](result, err)
}

// GetShipment fetches a shipment under breaker protection.
func (b *BreakerClient) GetShipment(ctx context.Context, shippingID int64, opts ...CallOption) (*Shipment, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetShipment(ctx, shippingID, opts...)
	})
	return castResult[Shipment](result, err)
}

// Me fetches the credential's account under breaker protection.
func (b *BreakerClient) Me(ctx context.Context, opts ...CallOption) (*User, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.Me(ctx, opts...)
	})
	return castResult[User](result, err)
}

// MultiGetItems fetches items in batches under breaker protection.
func (b *BreakerClient) MultiGetItems(ctx context.Context, ids, attributes []string, opts ...CallOption) ([]MultiGetResult, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.MultiGetItems(ctx, ids, attributes, opts...)
	})
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]MultiGetResult)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
