// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package meli

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxJitter is the upper bound of the random jitter added to each
// backoff-computed delay.
const maxJitter = 250 * time.Millisecond

// RetryPolicy decides whether a failed call is retryable and computes the
// delay before the next attempt. The zero value is not usable; construct
// with DefaultRetryPolicy and adjust fields as needed.
//
// The policy itself is pure: Delay depends only on its inputs plus the
// injected jitter source, which makes it unit-testable without sleeping.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// Base and Cap bound the exponential delay: min(Cap, Base*2^attempt).
	Base time.Duration
	Cap  time.Duration

	// MaxRetryAfter clips upstream Retry-After hints. Zero means no clip.
	MaxRetryAfter time.Duration

	// Jitter returns a random duration in [0, maxJitter). Overridable
	// for deterministic tests; nil uses math/rand.
	Jitter func() time.Duration

	// Now is the clock used to resolve absolute Retry-After dates.
	// Overridable for tests; nil uses time.Now.
	Now func() time.Time
}

// DefaultRetryPolicy returns the retry policy used by the client unless
// configured otherwise: 4 additional attempts, 300ms base, 5s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 4,
		Base:       300 * time.Millisecond,
		Cap:        5 * time.Second,
	}
}

// Delay computes the wait before retry number attempt (0-based).
//
// If the failed response carried a Retry-After hint, that hint is honored
// (clipped to MaxRetryAfter when configured) and the backoff formula is not
// consulted. Otherwise the delay is min(Cap, Base*2^attempt) plus jitter.
func (p RetryPolicy) Delay(attempt int, header http.Header) time.Duration {
	if hint, ok := p.parseRetryAfter(header); ok {
		if p.MaxRetryAfter > 0 && hint > p.MaxRetryAfter {
			return p.MaxRetryAfter
		}
		return hint
	}

	expo := p.Base << uint(attempt)
	if expo > p.Cap || expo <= 0 { // shift overflow guards
		expo = p.Cap
	}
	return expo + p.jitter()
}

func (p RetryPolicy) jitter() time.Duration {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

func (p RetryPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// parseRetryAfter converts a Retry-After response header into a wait
// duration. The header is either an integer count of seconds or an
// HTTP-format absolute date (RFC 7231). Returns false when absent or
// unparseable.
func (p RetryPolicy) parseRetryAfter(header http.Header) (time.Duration, bool) {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(raw); err == nil {
		delta := at.Sub(p.now())
		if delta < 0 {
			delta = 0
		}
		return delta, true
	}

	return 0, false
}
