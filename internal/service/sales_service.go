// Package service provides the core orchestration components for the sales
// analytics system.
//
// The SalesService coordinates the startup reconstruction of aggregates from
// the durable ledger, the ingestion path that applies committed transactions
// to the aggregate store, the read-only query surface, and the fan-out of
// updates to live subscribers.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/upagupta2003/sales-analytics/internal/metrics"
	"github.com/upagupta2003/sales-analytics/internal/model"
	"github.com/upagupta2003/sales-analytics/internal/store"
)

// updateQueueSize bounds the queue between ingestion and the dispatcher.
const updateQueueSize = 1000

// ErrNotStarted is returned for operations that require a started service.
var ErrNotStarted = errors.New("sales service not started")

// LedgerReader provides the grouped aggregate sums used to reconstruct the
// in-memory store at startup.
type LedgerReader interface {
	// TotalConverted returns the sum of converted amounts across all
	// committed transactions.
	TotalConverted(ctx context.Context) (decimal.Decimal, error)

	// TotalsByRep returns converted-amount sums grouped by sales rep,
	// ordered by sum descending.
	TotalsByRep(ctx context.Context) ([]model.DimensionTotal, error)

	// TotalsByRegion returns converted-amount sums grouped by region,
	// ordered by sum descending.
	TotalsByRegion(ctx context.Context) ([]model.DimensionTotal, error)
}

// SubscriptionManager defines the interface for managing live subscribers
// and distributing sales updates to them.
type SubscriptionManager interface {
	// Subscribe registers a new subscriber for all sales updates.
	Subscribe() (*Subscriber, error)

	// Unsubscribe removes a subscriber and cleans up associated resources.
	Unsubscribe(sub *Subscriber) error

	// StartDispatching begins the update distribution process.
	StartDispatching(ctx context.Context, ch <-chan model.SalesUpdate) error
}

// SalesService orchestrates the real-time aggregation core.
//
// The service owns the single channel between the ingestion path and the
// dispatcher, which preserves per-transaction causal ordering: Record applies
// the increment to the store before it enqueues the broadcast, so any
// subscriber reading the total after receiving an update observes a value
// that already includes the triggering transaction.
type SalesService struct {
	aggregates *store.AggregateStore  // The single point of shared mutable state
	ledger     LedgerReader           // Startup reconstruction source
	dispatcher SubscriptionManager    // Handles subscriber lifecycle and fan-out
	updates    chan model.SalesUpdate // Ingestion -> dispatcher queue
	started    atomic.Bool            // Atomic flag tracking service state

	mu     sync.Mutex         // Guards cancel between Start and Stop
	cancel context.CancelFunc // Function to cancel service context
}

// NewSalesService creates a new SalesService with the provided dependencies.
//
// The service is created in a stopped state and must be started with the
// Start method before it can ingest transactions or serve queries.
func NewSalesService(aggregates *store.AggregateStore, ledger LedgerReader, dispatcher SubscriptionManager) *SalesService {
	return &SalesService{
		aggregates: aggregates,
		ledger:     ledger,
		dispatcher: dispatcher,
		updates:    make(chan model.SalesUpdate, updateQueueSize),
	}
}

// Start reconstructs the aggregate store from the ledger and begins
// dispatching updates to subscribers.
//
// Reconstruction failure is fatal for the service: the core must not start
// serving with a store in an undefined state.
func (s *SalesService) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("sales service has already started")
	}

	// The cancel function must be visible to Stop before any operation that
	// can block, so a Stop racing a slow Start still tears the service down.
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.initialize(ctx); err != nil {
		s.teardown()
		return fmt.Errorf("failed to reconstruct aggregates: %w", err)
	}

	if err := s.dispatcher.StartDispatching(ctx, s.updates); err != nil {
		s.teardown()
		return fmt.Errorf("failed to start dispatching: %w", err)
	}

	return nil
}

// teardown cancels the service context and resets the lifecycle state.
func (s *SalesService) teardown() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.started.Store(false)
}

// initialize performs the one-time bulk load of grouped ledger sums into the
// aggregate store. The store composes the clear and the reload into a single
// atomic operation, so concurrent observers never see a partially loaded state.
func (s *SalesService) initialize(ctx context.Context) error {
	total, err := s.ledger.TotalConverted(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger total: %w", err)
	}

	reps, err := s.ledger.TotalsByRep(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rep totals: %w", err)
	}

	regions, err := s.ledger.TotalsByRegion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read region totals: %w", err)
	}

	s.aggregates.BulkLoad(total, reps, regions)

	log.Info().
		Str("total_usd", total.String()).
		Int("sales_reps", len(reps)).
		Int("regions", len(regions)).
		Msg("aggregates reloaded from ledger")
	return nil
}

// Stop gracefully shuts down the service. Live subscribers are disconnected
// by the dispatcher's cleanup.
func (s *SalesService) Stop() error {
	if !s.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}

	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	log.Info().Msg("SalesService stopped")
	return nil
}

// Record applies a committed transaction to the running aggregates and queues
// a broadcast for live subscribers.
//
// The caller must only invoke Record after the transaction is durably
// committed to the ledger. The increment is fully applied before the
// broadcast is enqueued; a failed increment (invalid amount) produces no
// broadcast and surfaces to the caller, and the store is never left partially
// updated.
func (s *SalesService) Record(_ context.Context, tx model.Transaction) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	if err := s.aggregates.Increment(tx.ConvertedAmountUSD, tx.SalesRep, tx.Region); err != nil {
		return fmt.Errorf("failed to apply increment: %w", err)
	}
	metrics.TransactionsIngested.Inc()

	update := model.SalesUpdate{
		Type:          model.UpdateTypeNewSale,
		AmountUSD:     tx.ConvertedAmountUSD,
		SalesRep:      tx.SalesRep,
		Region:        tx.Region,
		TotalSalesUSD: s.aggregates.Total(),
	}

	// Broadcasting is best-effort: never block ingestion on the queue.
	select {
	case s.updates <- update:
	default:
		log.Warn().Msg("update queue full, dropping broadcast")
		metrics.UpdatesDropped.Inc()
	}

	return nil
}

// Metrics returns a snapshot of the current running totals.
func (s *SalesService) Metrics() model.MetricsSnapshot {
	return s.aggregates.Snapshot()
}

// TopReps returns the n sales representatives with the highest accumulated
// revenue, descending.
func (s *SalesService) TopReps(n int) ([]model.RankedEntry, error) {
	return s.aggregates.TopN(model.DimensionRep, n)
}

// TopRegions returns the n regions with the highest accumulated revenue,
// descending.
func (s *SalesService) TopRegions(n int) ([]model.RankedEntry, error) {
	return s.aggregates.TopN(model.DimensionRegion, n)
}

// Subscribe registers a live subscriber for sales updates.
func (s *SalesService) Subscribe() (*Subscriber, error) {
	if !s.started.Load() {
		return nil, ErrNotStarted
	}
	return s.dispatcher.Subscribe()
}

// Unsubscribe removes a live subscriber.
func (s *SalesService) Unsubscribe(sub *Subscriber) error {
	return s.dispatcher.Unsubscribe(sub)
}
