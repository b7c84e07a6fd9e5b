// Package book implements the concurrent multi-level order book: price-time
// ordered bid/ask sides, batch updates, impact-price and volume queries, and
// a per-symbol manager.
package book

import (
	"sync"
	"time"

	"github.com/google/btree"

	"main/internal/clock"
	"main/internal/decimal"
)

// btreeDegree matches the branching factor used for price-level trees.
const btreeDegree = 32

// Entry is one price level on one side of the book.
type Entry struct {
	Price    decimal.Decimal
	Amount   decimal.Decimal
	UpdateID int64
	Time     time.Time
}

// Ordering selects a side's priority rule: bids rank descending by price,
// asks ascending, ties going to the earlier arrival.
type Ordering uint8

const (
	OrderBids Ordering = iota
	OrderAsks
)

// Side is a thread-safe container of price levels kept in priority order.
// Levels are unique per price; an update replaces the resting amount rather
// than accumulating (snapshot-style depth updates, not deltas).
type Side struct {
	ordering Ordering
	clk      *clock.Clock

	mu     sync.Mutex
	levels *btree.BTreeG[Entry]
}

// NewSide creates an empty side. A nil clk falls back to the shared clock.
func NewSide(ordering Ordering, clk *clock.Clock) *Side {
	if clk == nil {
		clk = clock.Shared()
	}

	var less btree.LessFunc[Entry]
	if ordering == OrderBids {
		less = func(a, b Entry) bool { return a.Price.GreaterThan(b.Price) }
	} else {
		less = func(a, b Entry) bool { return a.Price.LessThan(b.Price) }
	}

	return &Side{
		ordering: ordering,
		clk:      clk,
		levels:   btree.NewG(btreeDegree, less),
	}
}

// Update upserts the level at price. A zero amount removes the level; a
// nonzero amount replaces it wholesale.
func (s *Side) Update(price, amount decimal.Decimal, updateID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pivot := Entry{Price: price}
	if amount.IsZero() {
		s.levels.Delete(pivot)
		return
	}
	entry := Entry{
		Price:    price,
		Amount:   amount,
		UpdateID: updateID,
		Time:     s.clk.Now(),
	}
	// Replacing the amount keeps the level's original time priority.
	if prev, ok := s.levels.Get(pivot); ok {
		entry.Time = prev.Time
	}
	s.levels.ReplaceOrInsert(entry)
}

// Best returns the top-of-book level, or false when the side is empty.
func (s *Side) Best() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels.Min()
}

// Levels returns up to limit levels in priority order; limit 0 means all.
// The snapshot is taken under a single lock acquisition.
func (s *Side) Levels(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.levels.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]Entry, 0, n)
	s.levels.Ascend(func(e Entry) bool {
		result = append(result, e)
		return limit == 0 || len(result) < limit
	})
	return result
}

// VolumeAtOrBetter sums resting amounts at levels at least as favorable as
// price: >= price for bids, <= price for asks. Levels are ordered, so the
// walk stops at the first unfavorable level.
func (s *Side) VolumeAtOrBetter(price decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero()
	s.levels.Ascend(func(e Entry) bool {
		if s.ordering == OrderBids {
			if e.Price.LessThan(price) {
				return false
			}
		} else if e.Price.GreaterThan(price) {
			return false
		}
		total = total.Add(e.Amount)
		return true
	})
	return total
}

// Len returns the number of price levels.
func (s *Side) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels.Len()
}

// Empty reports whether the side has no levels.
func (s *Side) Empty() bool { return s.Len() == 0 }

// Clear removes all levels.
func (s *Side) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels.Clear(false)
}
