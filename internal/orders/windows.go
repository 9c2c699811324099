// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"iter"
	"time"
)

// DateWindow is a bounded date sub-range used to keep each upstream page
// query within safe limits. Windows are non-overlapping and, concatenated,
// cover the full requested range.
type DateWindow struct {
	Start time.Time `json:"from"`
	End   time.Time `json:"to"`
}

// minWindowDays and maxWindowDays bound the window span.
const (
	minWindowDays = 1
	maxWindowDays = 31
)

// ClampWindowDays clamps a requested window span to [1, 31].
func ClampWindowDays(days int) int {
	if days < minWindowDays {
		return minWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

// Windows returns a lazy sequence of date windows covering [from, to],
// newest-first, each spanning at most ClampWindowDays(windowDays) calendar
// days. Boundaries are snapped to day bounds (00:00:00.000 starts,
// 23:59:59.999 ends, UTC) except the earliest window's start, which equals
// from unmodified, and the latest window's end, which equals to unmodified
// when to is not a day boundary. from > to yields an empty sequence.
//
// The sequence is restartable: ranging over it again regenerates the
// windows from scratch.
func Windows(from, to time.Time, windowDays int) iter.Seq[DateWindow] {
	days := ClampWindowDays(windowDays)

	return func(yield func(DateWindow) bool) {
		if from.After(to) {
			return
		}

		fromDay := startOfDay(from)
		endDay := startOfDay(to)

		for !endDay.Before(fromDay) {
			startDay := endDay.AddDate(0, 0, -(days - 1))
			if startDay.Before(fromDay) {
				startDay = fromDay
			}

			w := DateWindow{Start: startDay, End: endOfDay(endDay)}
			if startDay.Equal(fromDay) {
				w.Start = from.In(time.UTC)
			}
			if endDay.Equal(startOfDay(to)) && !isDayBoundary(to) {
				w.End = to.In(time.UTC)
			}

			if !yield(w) {
				return
			}
			endDay = startDay.AddDate(0, 0, -1)
		}
	}
}

// startOfDay returns 00:00:00.000 UTC of t's day.
func startOfDay(t time.Time) time.Time {
	t = t.In(time.UTC)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// endOfDay returns 23:59:59.999 UTC of t's day.
func endOfDay(t time.Time) time.Time {
	t = t.In(time.UTC)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// isDayBoundary reports whether t is exactly midnight UTC.
func isDayBoundary(t time.Time) bool {
	return t.In(time.UTC).Equal(startOfDay(t))
}
