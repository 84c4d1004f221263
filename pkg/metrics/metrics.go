// Package metrics provides the centralized Prometheus metrics reference
// for the audit export engine. The metric variables themselves are
// defined in their owning packages (executor, cache) via promauto to
// keep registration next to the code that drives them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the engine.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Query Metrics (pkg/executor):
//   - audit_queries_total{outcome} (Counter): Provider queries by outcome
//     (success, cache_hit, timeout, protocol_error, upstream_error)
//   - audit_query_duration_seconds (Histogram): Provider query duration
//
// Cache Metrics (pkg/cache):
//   - audit_cache_hits_total{backend} (Counter): Cache hits by backend
//     (archive, redis)
//   - audit_cache_misses_total (Counter): Cache misses, stale entries included
//   - audit_cache_errors_total{operation} (Counter): Cache operation errors
//     (lookup, store)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(audit_cache_hits_total[5m])) /
//   (sum(rate(audit_cache_hits_total[5m])) + sum(rate(audit_cache_misses_total[5m])))
//
//   # Query Failure Rate
//   sum(rate(audit_queries_total{outcome!~"success|cache_hit"}[5m]))
//
//   # P95 Query Latency
//   histogram_quantile(0.95, rate(audit_query_duration_seconds_bucket[5m]))
