package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_processor_items_total",
		Help: "Batch items by terminal outcome",
	}, []string{"outcome"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acrogen_processor_validation_failures_total",
		Help: "Validation failures by category",
	}, []string{"category"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "acrogen_processor_batch_duration_seconds",
		Help:    "Wall-clock duration of batch runs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
