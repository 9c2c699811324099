// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// errStreamingUnsupported is returned when the response writer cannot
// flush, e.g. behind a buffering proxy handler in tests.
var errStreamingUnsupported = errors.New("response writer does not support streaming")

// sseWriter frames server-sent events onto an HTTP response. Writes are
// serialized so pipeline emissions and keep-alive comments never
// interleave. The keep-alive goroutine stops when Close is called or the
// request context ends.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
	done   sync.WaitGroup
}

// newSSEWriter prepares the response for streaming and starts the
// keep-alive ticker. keepAlive <= 0 disables it.
func newSSEWriter(w http.ResponseWriter, r *http.Request, keepAlive time.Duration) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := &sseWriter{
		w:       w,
		flusher: flusher,
		stop:    make(chan struct{}),
	}

	if keepAlive > 0 {
		s.done.Add(1)
		go func() {
			defer s.done.Done()
			ticker := time.NewTicker(keepAlive)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.comment()
				case <-s.stop:
					return
				case <-r.Context().Done():
					return
				}
			}
		}()
	}
	return s, nil
}

// Send frames one event. Satisfies the stream sink contract.
func (s *sseWriter) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// comment writes a heartbeat comment line.
func (s *sseWriter) comment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := fmt.Fprint(s.w, ":\n\n"); err != nil {
		return
	}
	s.flusher.Flush()
}

// Close stops the keep-alive ticker and rejects further writes.
func (s *sseWriter) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	s.done.Wait()
}
