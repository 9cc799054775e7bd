// Package metrics exposes Prometheus instrumentation for the service.
//
// Collectors are registered on the default registry and served by the HTTP
// layer at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsIngested counts transactions applied to the aggregate store.
	TransactionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_transactions_ingested_total",
		Help: "Number of sales transactions applied to the aggregate store.",
	})

	// UpdatesBroadcast counts updates fanned out to subscribers.
	UpdatesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_updates_broadcast_total",
		Help: "Number of sales updates dispatched to live subscribers.",
	})

	// UpdatesDropped counts per-subscriber updates dropped because the
	// subscriber was too slow to drain its buffer.
	UpdatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_updates_dropped_total",
		Help: "Number of sales updates dropped for slow subscribers.",
	})

	// ActiveSubscribers tracks the current number of live subscriber connections.
	ActiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_active_subscribers",
		Help: "Current number of live sales-update subscribers.",
	})
)
