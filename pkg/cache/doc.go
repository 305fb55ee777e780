// Package cache implements the cache-aside layer over the shared store
// with stampede mitigation and degraded-read fallbacks.
//
// The engine provides:
//
// - Get-or-compute with a per-key distributed recomputation lock
// - Jittered TTLs to desynchronize mass expiry
// - Probabilistic refresh-ahead for hot keys
// - Bounded stale reads when recomputation fails
// - Idempotent multi-key invalidation for post-write callers
// - Deterministic function-result keys (Keyer)
// - Namespaced eviction-policy facades (FIFO/LRU/LFU/MRU/LIFO)
//
// # Basic Usage
//
//	manager := connection.NewManager(cfg, logger)
//	store, err := manager.Get(ctx)
//	if err != nil {
//		return err
//	}
//
//	c := cache.New(store, nil, cache.DefaultOptions(), logger)
//
//	var item Item
//	err = c.GetOrCompute(ctx, "item:42", 5*time.Minute, func(ctx context.Context) (any, error) {
//		return loadItem(ctx, 42)
//	}, &item)
//
// # Write Path
//
//	// After a create/update/delete, invalidate to prevent stale reads.
//	if err := c.Invalidate(ctx, "item:42", "item:index"); err != nil {
//		return err
//	}
//
// # Failure Policy
//
// Reads fail open: lookup failures are logged and treated as misses, so
// the cache is never a single point of failure for read paths. Writes and
// invalidations propagate errors after logging. When a compute function
// fails and the previous value is still inside the staleness window, the
// stale value is served and the error is logged, not raised.
//
// # Eviction Facades
//
// The five policy facades share one implementation: a namespace prefix and
// a default TTL. Real eviction under memory pressure is delegated to the
// store's maxmemory-policy; see Policy.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - rediskit_cache_hits_total / rediskit_cache_misses_total
//   - rediskit_cache_sets_total
//   - rediskit_cache_errors_total{operation}
//   - rediskit_cache_stale_served_total
//   - rediskit_cache_refreshes_total
//   - rediskit_cache_lock_fallbacks_total
package cache
