package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for store operations.
var (
	// StoreHits counts lookups answered from Redis by keyspace.
	StoreHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_store_hits_total",
		Help: "Store lookups answered from Redis by keyspace",
	}, []string{"keyspace"})

	// StoreMisses counts lookups that found nothing by keyspace.
	StoreMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_store_misses_total",
		Help: "Store lookups that found nothing by keyspace",
	}, []string{"keyspace"})

	// StoreErrors counts failed store operations by operation name.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_store_errors_total",
		Help: "Failed store operations by operation",
	}, []string{"operation"})
)
