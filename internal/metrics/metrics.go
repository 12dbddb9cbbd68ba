// Package metrics exposes the pipeline's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the pipeline counters. Constructed once at process start
// and passed into the handlers that increment them.
type Metrics struct {
	Registry *prometheus.Registry

	TransactionsProcessed *prometheus.CounterVec
	EventsStored          prometheus.Counter
	StoreErrors           prometheus.Counter
	DecodeErrors          prometheus.Counter
	RPCCalls              *prometheus.CounterVec
	RateLimited           *prometheus.CounterVec
}

// New builds the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TransactionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainmirror_transactions_processed_total",
			Help: "Ledger transactions run through the extraction pipeline.",
		}, []string{"source"}),
		EventsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainmirror_events_stored_total",
			Help: "Event records upserted into the store.",
		}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainmirror_store_errors_total",
			Help: "Event records that failed to upsert.",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainmirror_decode_errors_total",
			Help: "Transactions that failed fetch or decode during backfill.",
		}),
		RPCCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainmirror_rpc_calls_total",
			Help: "Outbound ledger RPC calls by method.",
		}, []string{"method"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainmirror_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by class.",
		}, []string{"class"}),
	}
}
