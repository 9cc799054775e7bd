// Package service provides the core orchestration components for the sales
// analytics system: the subscriber registry with its fan-out dispatcher, and
// the sales service that ties ledger reconstruction, aggregation, and
// broadcasting together.
//
// The dispatcher implements a fan-out distribution system that delivers
// real-time sales updates to multiple subscribers while handling slow clients
// gracefully.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/upagupta2003/sales-analytics/internal/metrics"
	"github.com/upagupta2003/sales-analytics/internal/model"
)

// defaultSubscriberBuffer is the per-subscriber channel capacity used when
// the configuration does not set one.
const defaultSubscriberBuffer = 100

// Subscriber represents one live client subscription to sales updates.
//
// Each subscriber owns a buffered channel the dispatcher delivers into. A
// subscriber that drains too slowly loses its oldest buffered update rather
// than blocking ingestion.
type Subscriber struct {
	id int64                  // Unique identifier for the subscriber
	ch chan model.SalesUpdate // Buffered channel for update delivery
}

// Updates exposes the subscriber's receive channel. The channel is closed
// when the subscriber is unregistered or the dispatcher shuts down.
func (s *Subscriber) Updates() <-chan model.SalesUpdate {
	return s.ch
}

// DispatcherConfig holds configuration parameters for the Dispatcher.
type DispatcherConfig struct {
	SubscriberBuffer int // Per-subscriber channel capacity
}

// Dispatcher implements a fan-out distribution system for sales updates.
//
// The dispatcher uses the actor model pattern: a single goroutine owns the
// subscriber map, so no mutex is needed for it. Registration, removal, and
// incoming updates all arrive over channels, which keeps Broadcast isolated
// from slow network I/O — a send to a subscriber is a channel write into a
// bounded buffer, never a blocking socket operation.
type Dispatcher struct {
	cfg              DispatcherConfig      // Configuration parameters
	subscribers      map[int64]*Subscriber // Active subscribers (owned by dispatch goroutine)
	subscriptionCh   chan *Subscriber      // Channel for new subscription requests
	unsubscriptionCh chan *Subscriber      // Channel for unsubscription requests
	started          atomic.Bool           // Atomic flag tracking dispatcher state
	nextID           atomic.Int64          // Source of unique subscriber IDs
}

// NewDispatcher creates a new Dispatcher instance with the provided configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Dispatcher{
		cfg:              cfg,
		subscribers:      make(map[int64]*Subscriber),
		subscriptionCh:   make(chan *Subscriber, 10), // Buffered to prevent blocking
		unsubscriptionCh: make(chan *Subscriber, 10), // Buffered to prevent blocking
	}
}

// Subscribe registers a new subscriber for all sales updates.
//
// The registration request is sent to the dispatcher goroutine via a channel
// to ensure thread-safe addition to the subscriber map. Each call produces
// one logical subscriber; a reconnecting client gets a fresh registration.
func (d *Dispatcher) Subscribe() (*Subscriber, error) {
	if !d.started.Load() {
		return nil, errors.New("dispatcher not started")
	}

	sub := &Subscriber{
		id: d.nextID.Add(1),
		ch: make(chan model.SalesUpdate, d.cfg.SubscriberBuffer),
	}

	select {
	case d.subscriptionCh <- sub:
	default:
		return nil, fmt.Errorf("subscription channel is full")
	}

	return sub, nil
}

// subscribe is an internal method that adds a subscriber to the active map.
func (d *Dispatcher) subscribe(sub *Subscriber) {
	d.subscribers[sub.id] = sub
	metrics.ActiveSubscribers.Inc()
}

// Unsubscribe removes a subscriber from the dispatcher. Removing a subscriber
// that is already gone is a no-op, not an error.
func (d *Dispatcher) Unsubscribe(sub *Subscriber) error {
	select {
	case d.unsubscriptionCh <- sub:
		return nil
	default:
		return fmt.Errorf("unsubscription channel is full")
	}
}

// unsubscribe is an internal method that removes a subscriber and cleans up
// its resources.
func (d *Dispatcher) unsubscribe(sub *Subscriber) {
	if _, ok := d.subscribers[sub.id]; ok {
		delete(d.subscribers, sub.id)
		close(sub.ch)
		metrics.ActiveSubscribers.Dec()
	}
}

// StartDispatching starts the dispatcher goroutine that owns subscriber
// management and update distribution.
//
// The goroutine processes requests from three sources:
//  1. Context cancellation for graceful shutdown
//  2. Subscription/unsubscription requests via channels
//  3. Incoming sales updates for distribution
func (d *Dispatcher) StartDispatching(ctx context.Context, updateCh <-chan model.SalesUpdate) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("dispatcher already started")
	}

	go func() {
		defer func() {
			// Cleanup on shutdown
			for _, sub := range d.subscribers {
				close(sub.ch)
				metrics.ActiveSubscribers.Dec()
			}
			d.subscribers = make(map[int64]*Subscriber)
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("dispatcher stopped")
				return
			case sub := <-d.subscriptionCh:
				d.subscribe(sub)
			case sub := <-d.unsubscriptionCh:
				d.unsubscribe(sub)
			case update, ok := <-updateCh:
				if !ok {
					return
				}
				d.dispatch(update)
			}
		}
	}()
	return nil
}

// dispatch delivers an update to every registered subscriber.
//
// Only called from within the dispatcher goroutine, so the subscriber map
// needs no locking. Delivery is best-effort and isolated per subscriber:
//   - if a subscriber's channel has room, the update is buffered
//   - if the channel is full, the oldest buffered update is dropped so the
//     newest is always delivered, and the drop is counted
func (d *Dispatcher) dispatch(update model.SalesUpdate) {
	for _, sub := range d.subscribers {
		select {
		case sub.ch <- update:
			// Delivered without blocking
		default:
			// Buffer full: drop oldest for this slow subscriber
			log.Info().Int64("subscriber", sub.id).Msg("subscriber is too slow, dropping oldest buffered update")
			metrics.UpdatesDropped.Inc()
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- update:
			default:
			}
		}
	}
	metrics.UpdatesBroadcast.Inc()
}
