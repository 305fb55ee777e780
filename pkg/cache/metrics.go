package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// cacheMisses tracks cache misses, including logical expiries.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheSets tracks successful cache writes.
	cacheSets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cache_sets_total",
			Help: "Total number of cache writes",
		},
	)

	// cacheErrors tracks cache operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rediskit_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// staleServed tracks degraded reads served from the staleness window.
	staleServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cache_stale_served_total",
			Help: "Total number of stale values served after compute failures",
		},
	)

	// refreshes tracks scheduled background recomputations.
	refreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cache_refreshes_total",
			Help: "Total number of refresh-ahead recomputations scheduled",
		},
	)

	// lockFallbacks tracks misses that computed directly because the
	// recomputation lock could not be acquired in time.
	lockFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cache_lock_fallbacks_total",
			Help: "Total number of direct computes after lock acquisition timed out",
		},
	)
)
