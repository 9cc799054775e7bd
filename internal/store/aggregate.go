// Package store implements the in-process aggregate store for real-time
// sales metrics.
//
// The store is the single point of shared mutable state in the aggregation
// core. It holds the running revenue total and one ranking per dimension
// (sales rep, region), all guarded by a single read-write mutex so every
// logical operation is atomic: concurrent writers never lose an increment and
// readers never observe a partially applied update.
//
// Thread Safety:
//   - Every exported method acquires the store mutex for its full duration
//   - Reset and BulkLoad are composed under one exclusive lock, so a reader
//     can never observe the cleared-but-not-yet-reloaded state
//   - All amounts use decimal.Decimal, so concurrent accumulation is exact
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/upagupta2003/sales-analytics/internal/model"
)

// Errors returned by the aggregate store.
var (
	// ErrNegativeAmount indicates an increment with a negative amount.
	// Converted amounts are non-negative by the time they reach the core.
	ErrNegativeAmount = errors.New("increment amount must not be negative")

	// ErrUnknownDimension indicates a top-N query for a dimension the store
	// does not track.
	ErrUnknownDimension = errors.New("unknown ranking dimension")
)

// counter is one entry of a dimension ranking.
type counter struct {
	total decimal.Decimal // Accumulated revenue for the key
	seq   uint64          // First-contribution order, breaks ties among equal totals
}

// AggregateStore maintains the running total and per-dimension rankings.
//
// The zero value is not usable; construct instances with NewAggregateStore.
type AggregateStore struct {
	mu       sync.RWMutex
	total    decimal.Decimal     // Running total in the reference currency
	byRep    map[string]*counter // Revenue by sales representative
	byRegion map[string]*counter // Revenue by region
	nextSeq  uint64              // Next first-seen sequence number
}

// NewAggregateStore creates an empty aggregate store.
func NewAggregateStore() *AggregateStore {
	s := &AggregateStore{}
	s.reset()
	return s
}

// reset clears all state. Callers must hold the write lock (or own the
// store exclusively, as in NewAggregateStore).
func (s *AggregateStore) reset() {
	s.total = decimal.Zero
	s.byRep = make(map[string]*counter)
	s.byRegion = make(map[string]*counter)
	s.nextSeq = 0
}

// Reset atomically clears the running total and both dimension rankings.
func (s *AggregateStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// BulkLoad replaces the entire store content with a grouped aggregate
// snapshot obtained from the durable ledger.
//
// The clear and the reload happen under one exclusive lock, so concurrent
// readers observe either the full previous state or the full loaded state,
// never a mix. Entries with an empty key are skipped: transactions without a
// rep or region contribute to the total only.
//
// Seed slices are consumed in order; their order defines the first-seen
// ranking among keys with equal totals.
func (s *AggregateStore) BulkLoad(total decimal.Decimal, reps, regions []model.DimensionTotal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.total = total
	for _, dt := range reps {
		s.seed(s.byRep, dt)
	}
	for _, dt := range regions {
		s.seed(s.byRegion, dt)
	}
}

// seed inserts one bulk-load row into a ranking. Callers must hold the write lock.
func (s *AggregateStore) seed(ranking map[string]*counter, dt model.DimensionTotal) {
	if dt.Key == "" {
		return
	}
	ranking[dt.Key] = &counter{total: dt.TotalUSD, seq: s.nextSeq}
	s.nextSeq++
}

// Increment atomically adds amountUSD to the running total and, for each
// non-empty dimension key, to that key's ranking entry (creating the entry on
// first contribution).
//
// A negative amount is rejected before any state is touched, so a failed
// increment never leaves the store partially updated. All three updates
// happen under one lock acquisition; concurrent increments are applied
// exactly once each.
func (s *AggregateStore) Increment(amountUSD decimal.Decimal, repKey, regionKey string) error {
	if amountUSD.IsNegative() {
		return ErrNegativeAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = s.total.Add(amountUSD)
	s.bump(s.byRep, repKey, amountUSD)
	s.bump(s.byRegion, regionKey, amountUSD)
	return nil
}

// bump adds amount to the ranking entry for key, creating it lazily.
// Empty keys are excluded from rankings. Callers must hold the write lock.
func (s *AggregateStore) bump(ranking map[string]*counter, key string, amount decimal.Decimal) {
	if key == "" {
		return
	}
	c, ok := ranking[key]
	if !ok {
		c = &counter{total: decimal.Zero, seq: s.nextSeq}
		s.nextSeq++
		ranking[key] = c
	}
	c.total = c.total.Add(amount)
}

// Total returns the current running revenue total.
func (s *AggregateStore) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Snapshot returns a consistent point-in-time view of the running metrics.
func (s *AggregateStore) Snapshot() model.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.MetricsSnapshot{TotalSalesUSD: s.total}
}

// TopN returns the n highest-revenue keys of the given dimension, ordered by
// accumulated revenue descending. Ties are broken by first-seen order: among
// keys with equal totals, the key that first contributed ranks higher, which
// makes repeated calls on unchanged state return identical order.
//
// Fewer than n entries are returned when fewer keys exist; n <= 0 yields an
// empty result.
func (s *AggregateStore) TopN(dimension model.Dimension, n int) ([]model.RankedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ranking map[string]*counter
	switch dimension {
	case model.DimensionRep:
		ranking = s.byRep
	case model.DimensionRegion:
		ranking = s.byRegion
	default:
		return nil, ErrUnknownDimension
	}

	if n <= 0 {
		return []model.RankedEntry{}, nil
	}

	type row struct {
		key string
		cnt counter
	}
	rows := make([]row, 0, len(ranking))
	for key, c := range ranking {
		rows = append(rows, row{key: key, cnt: *c})
	}

	sort.Slice(rows, func(i, j int) bool {
		cmp := rows[i].cnt.total.Cmp(rows[j].cnt.total)
		if cmp != 0 {
			return cmp > 0
		}
		return rows[i].cnt.seq < rows[j].cnt.seq
	})

	if n > len(rows) {
		n = len(rows)
	}

	entries := make([]model.RankedEntry, 0, n)
	for _, r := range rows[:n] {
		entries = append(entries, model.RankedEntry{Key: r.key, TotalUSD: r.cnt.total})
	}
	return entries, nil
}
