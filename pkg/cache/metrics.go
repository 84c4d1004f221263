package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by backend (archive, redis).
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_cache_hits_total",
			Help: "Total number of audit cache hits",
		},
		[]string{"backend"},
	)

	// cacheMisses tracks cache misses, including stale entries.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_cache_misses_total",
			Help: "Total number of audit cache misses",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "lookup", "store"
	)
)
