// Package metrics provides the centralized Prometheus metrics reference for
// the enrichment pipeline. All metrics are defined in their respective
// packages (remote, credential, ratelimit, retry, cache, processor) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Remote Metrics (pkg/remote):
//   - acrogen_remote_requests_total{outcome} (Counter): Generation calls by outcome
//   - acrogen_remote_request_duration_seconds (Histogram): Generation call duration
//   - acrogen_remote_errors_total{class} (Counter): Remote errors by class (auth, quota, transient)
//
// Credential Metrics (pkg/credential):
//   - acrogen_credentials_active (Gauge): Credentials currently active
//   - acrogen_credential_acquisitions_total (Counter): Successful credential acquisitions
//   - acrogen_credential_errors_total{class} (Counter): Errors recorded against credentials
//   - acrogen_pool_force_resets_total (Counter): Forced quota resets of the pool
//   - acrogen_pool_wait_timeouts_total (Counter): Waits that expired with no credential
//
// Rate Limit Metrics (pkg/ratelimit):
//   - acrogen_ratelimit_tokens (Gauge): Tokens currently in the bucket
//   - acrogen_ratelimit_waits_total (Counter): Acquisitions that had to wait
//   - acrogen_ratelimit_wait_seconds (Histogram): Time spent waiting for admission
//
// Retry Metrics (pkg/retry):
//   - acrogen_retries_total{error_class} (Counter): Retry attempts by error class
//   - acrogen_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - acrogen_retry_exhausted_total{error_class} (Counter): Operations that exhausted the attempt cap
//
// Store Metrics (pkg/cache):
//   - acrogen_store_hits_total{keyspace} (Counter): Store hits by keyspace (result, failure, cache)
//   - acrogen_store_misses_total{keyspace} (Counter): Store misses by keyspace
//   - acrogen_store_errors_total{operation} (Counter): Store operation errors
//
// Processor Metrics (pkg/processor):
//   - acrogen_processor_items_total{outcome} (Counter): Items by terminal outcome
//   - acrogen_processor_validation_failures_total{category} (Counter): Validation findings by category
//   - acrogen_processor_batch_duration_seconds (Histogram): Batch run duration
//
// Example Prometheus Queries:
//
//   # Store Hit Rate
//   sum(rate(acrogen_store_hits_total[5m])) /
//   (sum(rate(acrogen_store_hits_total[5m])) + sum(rate(acrogen_store_misses_total[5m])))
//
//   # Remote Error Rate by Class
//   rate(acrogen_remote_errors_total[5m])
//
//   # P95 Generation Latency
//   histogram_quantile(0.95, rate(acrogen_remote_request_duration_seconds_bucket[5m]))
//
//   # Batch Failure Ratio
//   rate(acrogen_processor_items_total{outcome="failed"}[1h]) /
//   rate(acrogen_processor_items_total[1h])
