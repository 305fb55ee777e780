// Package metrics provides the centralized Prometheus metrics registry.
// All metrics are defined in their respective packages (connection,
// breaker, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry. All metrics are
// automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Connection Metrics (pkg/connection):
//   - rediskit_connections_established_total{topology} (Counter): Connections established by topology
//   - rediskit_connection_failures_total{topology} (Counter): Connection attempts that failed
//   - rediskit_cluster_fallbacks_total (Counter): Cluster dials that fell back to standalone
//
// Circuit Breaker Metrics (pkg/breaker):
//   - rediskit_breaker_state{name} (Gauge): Breaker state (0=closed, 1=open, 2=half-open)
//   - rediskit_breaker_short_circuits_total{name} (Counter): Calls rejected without reaching the store
//   - rediskit_breaker_failures_total{name} (Counter): Transient failures counted toward tripping
//
// Cache Metrics (pkg/cache):
//   - rediskit_cache_hits_total (Counter): Cache hits
//   - rediskit_cache_misses_total (Counter): Cache misses, including logical expiries
//   - rediskit_cache_sets_total (Counter): Successful cache writes
//   - rediskit_cache_errors_total{operation} (Counter): Cache operation errors
//   - rediskit_cache_stale_served_total (Counter): Stale values served after compute failures
//   - rediskit_cache_refreshes_total (Counter): Refresh-ahead recomputations scheduled
//   - rediskit_cache_lock_fallbacks_total (Counter): Direct computes after lock timeout
//
// Rate Limit Metrics (pkg/ratelimit):
//   - rediskit_ratelimit_checks_total{outcome} (Counter): Admission checks by outcome (admitted, rejected, error)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(rediskit_cache_hits_total[5m])) /
//   (sum(rate(rediskit_cache_hits_total[5m])) + sum(rate(rediskit_cache_misses_total[5m])))
//
//   # Rejection Rate
//   rate(rediskit_ratelimit_checks_total{outcome="rejected"}[5m])
//
//   # Open Breakers
//   rediskit_breaker_state == 1
//
//   # Stale Serve Rate (degraded reads)
//   rate(rediskit_cache_stale_served_total[5m])
