// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

// Package metrics provides Prometheus instrumentation for Vendaval.
//
// Instrumented areas:
//   - HTTP API latency and throughput
//   - Upstream marketplace API requests, retries and token refreshes
//   - Circuit breaker state
//   - Sync pipeline throughput and hydrator saturation
//   - Stream event volume
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP API metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendaval_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Upstream client metrics

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendaval_upstream_requests_total",
			Help: "Total upstream marketplace API requests by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: success, unauthorized, transient, permanent, network
	)

	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vendaval_upstream_retries_total",
			Help: "Total retry attempts against the upstream marketplace API",
		},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendaval_token_refreshes_total",
			Help: "Total credential refresh attempts by result",
		},
		[]string{"result"}, // success, failure
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vendaval_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendaval_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Sync pipeline metrics

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendaval_sync_records_total",
			Help: "Total records processed by the sync pipeline",
		},
		[]string{"mode", "group"}, // mode: sync, stream
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendaval_sync_duration_seconds",
			Help:    "Duration of full sync operations in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	HydratorInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vendaval_hydrator_inflight_lookups",
			Help: "Number of shipment lookups currently in flight",
		},
	)

	WindowFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vendaval_window_fetch_errors_total",
			Help: "Total date-window page fetches that failed and were skipped",
		},
	)

	// Stream metrics

	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendaval_stream_events_total",
			Help: "Total SSE events emitted by type",
		},
		[]string{"event"},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vendaval_streams_active",
			Help: "Number of currently open order streams",
		},
	)
)

// ObserveHTTPRequest records a completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
