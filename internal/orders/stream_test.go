// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vendaval/vendaval/internal/meli"
)

type sinkEvent struct {
	event string
	data  any
}

// recordSink captures stream events in order. failAt, when positive, makes
// the Nth Send fail to simulate a departed client.
type recordSink struct {
	mu     sync.Mutex
	events []sinkEvent
	failAt int
}

func (r *recordSink) Send(event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{event, data})
	if r.failAt > 0 && len(r.events) >= r.failAt {
		return errors.New("client gone")
	}
	return nil
}

func (r *recordSink) byType(event string) []sinkEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sinkEvent
	for _, e := range r.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordSink) last() sinkEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return sinkEvent{}
	}
	return r.events[len(r.events)-1]
}

func TestStreamAllEventSequence(t *testing.T) {
	svc, _, opts := newTestService()
	sink := &recordSink{}

	if err := svc.StreamAll(context.Background(), sink, opts); err != nil {
		t.Fatalf("StreamAll: %v", err)
	}

	if len(sink.events) == 0 || sink.events[0].event != "meta" {
		t.Fatalf("first event = %v, want meta", sink.events[0].event)
	}
	meta, ok := sink.events[0].data.(MetaEvent)
	if !ok {
		t.Fatalf("meta payload type %T", sink.events[0].data)
	}
	if meta.Basis != BasisCreated || meta.WindowDays != 5 {
		t.Errorf("meta = %+v", meta)
	}

	// The opening meta plus one per window, each carrying that window's
	// reported size and the running expectation. Windows run newest first.
	metas := sink.byType("meta")
	if len(metas) != 3 {
		t.Fatalf("meta events = %d, want 3", len(metas))
	}
	first, ok := metas[1].data.(WindowMetaEvent)
	if !ok {
		t.Fatalf("window meta payload type %T", metas[1].data)
	}
	if first.WindowTotal != 3 || first.ExpectedTotal != 3 {
		t.Errorf("first window meta = %+v, want total 3 expected 3", first)
	}
	second := metas[2].data.(WindowMetaEvent)
	if second.WindowTotal != 2 || second.ExpectedTotal != 5 {
		t.Errorf("second window meta = %+v, want total 2 expected 5", second)
	}

	rows := sink.byType("row")
	if len(rows) != 4 {
		t.Errorf("rows = %d, want 4 (id 3 deduplicated)", len(rows))
	}
	seen := make(map[int64]bool)
	for _, e := range rows {
		rec := e.data.(EnrichedOrder)
		if seen[rec.ID] {
			t.Errorf("row %d emitted twice", rec.ID)
		}
		seen[rec.ID] = true
	}

	// With an expected total known, every row carries progress; the final
	// denominator is the accumulated window totals (id 3 counted twice).
	progress := sink.byType("progress")
	if len(progress) != 4 {
		t.Fatalf("progress events = %d, want 4", len(progress))
	}
	if last := progress[len(progress)-1].data.(ProgressEvent); last.Sent != 4 || last.Total != 5 {
		t.Errorf("final progress = %+v, want sent 4 total 5", last)
	}

	last := sink.last()
	if last.event != "done" {
		t.Fatalf("last event = %q, want done", last.event)
	}
	done := last.data.(DoneEvent)
	if !done.OK || done.Cancelled || done.Total != 4 {
		t.Errorf("done = %+v", done)
	}
	if done.Stats.Turbo != 1 {
		t.Errorf("done stats = %+v", done.Stats)
	}

	// The streamed set becomes the cached set.
	if svc.Store().Len() != 4 {
		t.Errorf("store holds %d records, want 4", svc.Store().Len())
	}
	if svc.Store().SyncedAt().IsZero() {
		t.Errorf("store syncedAt not set")
	}
}

func TestStreamAllWindowFailureEmitsErrorAndContinues(t *testing.T) {
	svc, fake, opts := newTestService()
	fake.failDays = map[string]error{
		"2026-03-06": &meli.APIError{Status: 503, Method: "GET", Path: "/orders/search"},
	}
	sink := &recordSink{}

	if err := svc.StreamAll(context.Background(), sink, opts); err != nil {
		t.Fatalf("StreamAll: %v", err)
	}

	errs := sink.byType("error")
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if len(sink.byType("row")) != 2 {
		t.Errorf("rows = %d, want 2 from the surviving window", len(sink.byType("row")))
	}
	// The failed window never reaches its first page, so only the opening
	// meta and the surviving window's meta appear.
	if metas := sink.byType("meta"); len(metas) != 2 {
		t.Errorf("meta events = %d, want 2", len(metas))
	}
	done := sink.last().data.(DoneEvent)
	if done.OK {
		t.Errorf("done.OK = true despite a skipped window")
	}
	if done.Total != 2 {
		t.Errorf("done.Total = %d, want 2", done.Total)
	}
}

func TestStreamAllSinkFailureAborts(t *testing.T) {
	svc, _, opts := newTestService()
	sink := &recordSink{failAt: 4} // meta, window meta, row, then fail

	if err := svc.StreamAll(context.Background(), sink, opts); err == nil {
		t.Fatal("expected error when the sink fails")
	}
	// Rows delivered before the abort stay cached, but the set is never
	// stamped as a completed sync.
	if !svc.Store().SyncedAt().IsZero() {
		t.Errorf("aborted stream must not stamp the store as synced")
	}
}

func TestStreamAllCancelledEmitsCancelledDone(t *testing.T) {
	svc, fake, opts := newTestService()
	sink := &recordSink{}

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once the first window has been served.
	var once sync.Once
	go func() {
		for {
			fake.searchMu.Lock()
			calls := fake.searchCalls
			fake.searchMu.Unlock()
			if calls >= 2 {
				once.Do(cancel)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	err := svc.StreamAll(ctx, sink, opts)
	if err == nil {
		// The raced cancel may land after completion; a clean finish is
		// acceptable only if the done event is uncancelled.
		done := sink.last().data.(DoneEvent)
		if done.Cancelled {
			t.Errorf("nil error but cancelled done event")
		}
		return
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	done, ok := sink.last().data.(DoneEvent)
	if !ok || sink.last().event != "done" {
		t.Fatalf("last event = %q, want done", sink.last().event)
	}
	if !done.Cancelled {
		t.Errorf("done.Cancelled = false on a cancelled stream")
	}
	if !svc.Store().SyncedAt().IsZero() {
		t.Errorf("cancelled stream must not stamp the store as synced")
	}
}
