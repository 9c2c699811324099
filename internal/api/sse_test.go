// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEWriterFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)

	s, err := newSSEWriter(rec, req, 0)
	if err != nil {
		t.Fatalf("newSSEWriter: %v", err)
	}
	if err := s.Send("meta", map[string]string{"basis": "created"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.Close()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("cache control = %q", cc)
	}

	body := rec.Body.String()
	want := "event: meta\ndata: {\"basis\":\"created\"}\n\n"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestSSEWriterRejectsSendAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)

	s, err := newSSEWriter(rec, req, 0)
	if err != nil {
		t.Fatalf("newSSEWriter: %v", err)
	}
	s.Close()

	if err := s.Send("row", 1); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestSSEWriterKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)

	s, err := newSSEWriter(rec, req, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("newSSEWriter: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	s.Close()

	if !strings.Contains(rec.Body.String(), ":\n\n") {
		t.Errorf("no keep-alive comment written: %q", rec.Body.String())
	}
}

func TestSSEWriterRequiresFlusher(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)

	if _, err := newSSEWriter(noFlushWriter{httptest.NewRecorder()}, req, 0); err == nil {
		t.Fatal("expected error for non-flushing writer")
	}
}

// noFlushWriter hides the recorder's Flush method behind the plain
// ResponseWriter interface.
type noFlushWriter struct {
	http.ResponseWriter
}
