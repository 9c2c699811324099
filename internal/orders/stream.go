// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vendaval/vendaval/internal/logging"
	"github.com/vendaval/vendaval/internal/meli"
	"github.com/vendaval/vendaval/internal/metrics"
)

// Sink receives incremental stream events. Send must be safe for calls
// from a single goroutine at a time; the Service serializes emissions.
// A Send error aborts the stream (the client is gone).
type Sink interface {
	Send(event string, data any) error
}

// Stream event payloads.
type (
	// MetaEvent opens a stream with the effective range.
	MetaEvent struct {
		From       time.Time `json:"from"`
		To         time.Time `json:"to"`
		Basis      DateBasis `json:"basis"`
		WindowDays int       `json:"windowDays"`
	}

	// WindowMetaEvent announces one window's upstream-reported size after
	// its first page, with the running expectation across windows so far.
	WindowMetaEvent struct {
		From          time.Time `json:"from"`
		To            time.Time `json:"to"`
		WindowTotal   int       `json:"windowTotal"`
		ExpectedTotal int       `json:"expectedTotal"`
	}

	// ProgressEvent reports rows delivered so far against the accumulated
	// window totals. Total is a best-effort denominator: the upstream
	// counts duplicates that dedup later drops.
	ProgressEvent struct {
		Sent  int `json:"sent"`
		Total int `json:"total"`
	}

	// StreamErrorEvent reports a window that failed and was skipped.
	StreamErrorEvent struct {
		Message string    `json:"message"`
		From    time.Time `json:"from"`
		To      time.Time `json:"to"`
	}

	// DoneEvent closes a stream with the final summary.
	DoneEvent struct {
		OK        bool       `json:"ok"`
		Cancelled bool       `json:"cancelled,omitempty"`
		Total     int        `json:"total"`
		Stats     Aggregates `json:"stats"`
		SyncedAt  time.Time  `json:"syncedAt"`
	}
)

// streamSession tracks per-run dedup and progress state shared between the
// fetch loop and the hydration callbacks.
type streamSession struct {
	mu    sync.Mutex
	sink  Sink
	seen  map[int64]struct{}
	sent  int
	total int
	aggs  Aggregates
	every int
}

// sinkError marks a failed delivery to the sink so the orchestrator can
// tell a departed client apart from an upstream window failure.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "stream sink: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

func (ss *streamSession) emit(event string, data any) error {
	metrics.StreamEvents.WithLabelValues(event).Inc()
	if err := ss.sink.Send(event, data); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

// dedup records ids not yet seen and returns the unseen subset.
func (ss *streamSession) dedup(batch []meli.Order) []meli.Order {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	fresh := batch[:0:0]
	for _, order := range batch {
		if _, dup := ss.seen[order.ID]; dup {
			continue
		}
		ss.seen[order.ID] = struct{}{}
		fresh = append(fresh, order)
	}
	return fresh
}

// openWindow accumulates a window's reported total into the running
// expectation and announces it. Called once per window, on its first page.
func (ss *streamSession) openWindow(w DateWindow, windowTotal int) error {
	ss.mu.Lock()
	ss.total += windowTotal
	expected := ss.total
	ss.mu.Unlock()

	return ss.emit("meta", WindowMetaEvent{
		From:          w.Start,
		To:            w.End,
		WindowTotal:   windowTotal,
		ExpectedTotal: expected,
	})
}

// row delivers one enriched record and its progress. While an expected
// total is known progress follows every row; otherwise it falls back to
// the configured cadence. Called from HydrateEach's single consumer
// goroutine.
func (ss *streamSession) row(rec EnrichedOrder) error {
	ss.mu.Lock()
	ss.sent++
	ss.aggs.Add(rec)
	sent, total := ss.sent, ss.total
	ss.mu.Unlock()

	if err := ss.emit("row", rec); err != nil {
		return err
	}
	if total > 0 || (ss.every > 0 && sent%ss.every == 0) {
		return ss.emit("progress", ProgressEvent{Sent: sent, Total: total})
	}
	return nil
}

// StreamAll runs the sync pipeline and delivers every record to the sink
// as it is enriched. Windows stream one after another; hydration within a
// window is concurrent. The result cache is reset when the stream opens
// and appended to as records arrive, so stats and page reads issued
// mid-stream observe the partial set; the synced timestamp is stamped
// only when the run completes. Cancellation stops the run and, when the
// sink is still reachable, closes it with a cancelled done event.
func (s *Service) StreamAll(ctx context.Context, sink Sink, opts SyncOptions) error {
	opts = s.normalize(opts)

	sellerID, err := s.SellerID(ctx)
	if err != nil {
		return err
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	ss := &streamSession{
		sink:  sink,
		seen:  make(map[int64]struct{}),
		every: s.cfg.ProgressEvery,
	}

	if err := ss.emit("meta", MetaEvent{
		From:       opts.From,
		To:         opts.To,
		Basis:      opts.Basis,
		WindowDays: opts.WindowDays,
	}); err != nil {
		return err
	}

	hydrator := NewHydrator(s.api, s.cfg.StreamWorkers)
	s.store.Reset()
	windowErrors := 0

	for w := range Windows(opts.From, opts.To, opts.WindowDays) {
		if err := ctx.Err(); err != nil {
			return s.closeCancelled(ss, err)
		}

		err := s.fetchWindow(ctx, sellerID, w, opts.Basis, func(batch []meli.Order, paging meli.Paging) error {
			if paging.Offset == 0 {
				if err := ss.openWindow(w, paging.Total); err != nil {
					return err
				}
			}

			fresh := ss.dedup(batch)
			if len(fresh) == 0 {
				return nil
			}
			return hydrator.HydrateEach(ctx, fresh, func(rec EnrichedOrder) error {
				s.store.Append(rec)
				return ss.row(rec)
			})
		})
		if err != nil {
			var se *sinkError
			if errors.As(err, &se) {
				logging.Warn().Err(se.err).Msg("Stream client gone, aborting")
				return err
			}
			if ctx.Err() != nil {
				return s.closeCancelled(ss, err)
			}
			windowErrors++
			metrics.WindowFetchErrors.Inc()
			logging.Error().
				Err(err).
				Time("window_from", w.Start).
				Time("window_to", w.End).
				Msg("Window fetch failed while streaming, skipping window")
			if serr := ss.emit("error", StreamErrorEvent{
				Message: "window fetch failed",
				From:    w.Start,
				To:      w.End,
			}); serr != nil {
				return serr
			}
		}
	}

	syncedAt := s.now().UTC()
	s.store.StampSynced(syncedAt)
	metrics.SyncRecords.WithLabelValues("stream", "total").Add(float64(ss.aggs.Total))

	logging.Info().
		Int("total", ss.aggs.Total).
		Int("window_errors", windowErrors).
		Str("basis", string(opts.Basis)).
		Msg("Stream completed")

	return ss.emit("done", DoneEvent{
		OK:       windowErrors == 0,
		Total:    ss.aggs.Total,
		Stats:    ss.aggs,
		SyncedAt: syncedAt,
	})
}

// closeCancelled ends a cancelled stream. Rows already appended stay in
// the cache without a synced stamp; the done event is best-effort since
// the client is often the cancellation source.
func (s *Service) closeCancelled(ss *streamSession, cause error) error {
	_ = ss.emit("done", DoneEvent{
		Cancelled: true,
		Total:     ss.aggs.Total,
		Stats:     ss.aggs,
		SyncedAt:  s.now().UTC(),
	})
	logging.Info().
		Int("rows_sent", ss.sent).
		Msg("Stream cancelled")
	return cause
}
