// Vendaval - Marketplace Seller Operations Dashboard
// Copyright 2026 Vendaval Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vendaval/vendaval

package orders

import (
	"sort"
	"sync"
	"time"
)

// Store holds the most recent sync result in memory. A Store belongs to
// the server instance that created it; reads may race with a concurrent
// sync and see either the previous or the new snapshot, never a partial
// one.
type Store struct {
	mu       sync.RWMutex
	items    []EnrichedOrder
	syncedAt time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace atomically swaps the cached result set.
func (s *Store) Replace(items []EnrichedOrder, syncedAt time.Time) {
	sorted := make([]EnrichedOrder, len(items))
	copy(sorted, items)
	sortByRecency(sorted)

	s.mu.Lock()
	s.items = sorted
	s.syncedAt = syncedAt
	s.mu.Unlock()
}

// Append inserts records into the cached set, keeping the recency order.
// syncedAt is untouched: the streaming path resets the store, appends as
// records arrive, and stamps the set once the run completes.
func (s *Store) Append(recs ...EnrichedOrder) {
	if len(recs) == 0 {
		return
	}
	s.mu.Lock()
	s.items = append(s.items, recs...)
	sortByRecency(s.items)
	s.mu.Unlock()
}

// StampSynced marks the cached set as produced at t.
func (s *Store) StampSynced(t time.Time) {
	s.mu.Lock()
	s.syncedAt = t
	s.mu.Unlock()
}

// Reset drops the cached result set.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.syncedAt = time.Time{}
	s.mu.Unlock()
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// SyncedAt returns when the cached set was produced; zero when empty.
func (s *Store) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncedAt
}

// Snapshot returns a copy of all cached records, newest first.
func (s *Store) Snapshot() []EnrichedOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EnrichedOrder, len(s.items))
	copy(out, s.items)
	return out
}

// Aggregates computes the dashboard summary over the cached set.
func (s *Store) Aggregates() Aggregates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Aggregate(s.items)
}

// PageResult is one page of the cached set.
type PageResult struct {
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
	Pages    int             `json:"pages"`
	Data     []EnrichedOrder `json:"data"`
}

// PageFilter narrows a page read. Zero values match every record.
type PageFilter struct {
	Group DeliveryGroup
	Form  FulfillmentForm
}

func (f PageFilter) matches(o EnrichedOrder) bool {
	if f.Group != "" && o.Group != f.Group {
		return false
	}
	if f.Form != "" && o.Form != f.Form {
		return false
	}
	return true
}

// Page returns the requested 1-based page of cached records matching the
// filter. Totals count the filtered set; pages past the end return an
// empty data slice with unchanged totals.
func (s *Store) Page(page, pageSize int, filter PageFilter) PageResult {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	view := s.items
	if filter != (PageFilter{}) {
		view = view[:0:0]
		for _, o := range s.items {
			if filter.matches(o) {
				view = append(view, o)
			}
		}
	}

	total := len(view)
	pages := (total + pageSize - 1) / pageSize
	res := PageResult{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    pages,
		Data:     []EnrichedOrder{},
	}

	lo := (page - 1) * pageSize
	if lo >= total {
		return res
	}
	hi := lo + pageSize
	if hi > total {
		hi = total
	}
	res.Data = make([]EnrichedOrder, hi-lo)
	copy(res.Data, view[lo:hi])
	return res
}

// sortByRecency orders records by close date, falling back to creation
// date, newest first. The upstream emits RFC 3339 timestamps, so string
// comparison matches chronological order.
func sortByRecency(items []EnrichedOrder) {
	key := func(o EnrichedOrder) string {
		if o.DateClosed != "" {
			return o.DateClosed
		}
		return o.DateCreated
	}
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]) > key(items[j])
	})
}
