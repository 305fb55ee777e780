package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/breaker"
	"github.com/wcf000/rediskit/pkg/connection"
)

var (
	// ErrCacheMiss indicates the requested key was not found or is expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// ComputeFunc produces a value on a cache miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Options configures a Cache.
type Options struct {
	// Namespace prefixes every key, partitioning unrelated entries
	// sharing one physical store.
	Namespace string

	// DefaultTTL applies when Set or GetOrCompute receives a zero TTL.
	DefaultTTL time.Duration

	// JitterMax is the upper bound of the random addition to every TTL.
	// Jitter desynchronizes mass expiry so a burst of writes at the same
	// instant does not stampede the backing source later.
	JitterMax time.Duration

	// RefreshProbability is the chance that a cache hit schedules an
	// asynchronous recomputation to keep hot keys warm before expiry.
	RefreshProbability float64

	// RefreshTimeout bounds a background recomputation.
	RefreshTimeout time.Duration

	// StaleTTL is the bounded staleness window: how long past logical
	// expiry an entry stays readable as a degraded fallback.
	StaleTTL time.Duration

	// LockTTL is the expiry of the distributed recomputation lock.
	// The TTL releases the lock if the holder crashes.
	LockTTL time.Duration

	// LockRetries and LockRetryDelay control how long a concurrent miss
	// waits for the lock holder before computing directly.
	LockRetries    int
	LockRetryDelay time.Duration
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Namespace:          "cache",
		DefaultTTL:         time.Hour,
		JitterMax:          60 * time.Second,
		RefreshProbability: 0.1,
		RefreshTimeout:     30 * time.Second,
		StaleTTL:           60 * time.Second,
		LockTTL:            5 * time.Second,
		LockRetries:        16,
		LockRetryDelay:     250 * time.Millisecond,
	}
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	Deletes uint64
}

// Cache implements get-or-compute, invalidation and warm-up primitives
// over the shared store. Recomputation of one key is serialized across all
// processes by a distributed lock; reads fail open, writes propagate
// errors.
type Cache struct {
	store   connection.Store
	breaker *breaker.Breaker
	locks   *redsync.Redsync
	opts    Options
	logger  zerolog.Logger

	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
}

// New creates a cache over the given store. A nil breaker gets a default
// instance for the "cache" call category.
func New(store connection.Store, brk *breaker.Breaker, opts Options, logger zerolog.Logger) *Cache {
	if store == nil {
		panic("store cannot be nil")
	}
	defaults := DefaultOptions()
	if opts.Namespace == "" {
		opts.Namespace = defaults.Namespace
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = defaults.DefaultTTL
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaults.RefreshTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaults.LockTTL
	}
	if opts.LockRetries <= 0 {
		opts.LockRetries = defaults.LockRetries
	}
	if opts.LockRetryDelay <= 0 {
		opts.LockRetryDelay = defaults.LockRetryDelay
	}
	if brk == nil {
		brk = breaker.New("cache", breaker.DefaultConfig())
	}

	return &Cache{
		store:   store,
		breaker: brk,
		locks:   redsync.New(goredis.NewPool(store.Universal())),
		opts:    opts,
		logger:  logger.With().Str("component", "cache").Str("namespace", opts.Namespace).Logger(),
	}
}

// Get retrieves the value at key into dest. Returns ErrCacheMiss when the
// key is absent or logically expired.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	entry, err := c.getEntry(ctx, key)
	if err != nil {
		return err
	}
	if entry.IsExpired() {
		c.misses.Add(1)
		cacheMisses.Inc()
		return ErrCacheMiss
	}
	c.hits.Add(1)
	cacheHits.Inc()
	if err := json.Unmarshal(entry.Data, dest); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// TryGet is the fail-open read path: any failure, store or serialization,
// is logged and reported as a plain miss. The cache must never be a single
// point of failure for reads.
func (c *Cache) TryGet(ctx context.Context, key string, dest any) bool {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed, treating as miss")
	}
	return false
}

// Set stores value at key. The effective TTL is ttl plus a random jitter
// up to JitterMax; a zero ttl uses the default. Write failures propagate
// after logging: silent loss of a write would break invalidation callers.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.setRaw(ctx, key, data, ttl)
}

// Invalidate deletes one or more keys. Deleting absent keys is a no-op, so
// repeated invalidation is safe. Use after create/update/delete commands
// to prevent stale reads.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	nsKeys := make([]string, len(keys))
	for i, k := range keys {
		nsKeys[i] = c.key(k)
	}
	_, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return c.store.Del(ctx, nsKeys...)
	})
	if err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		c.logger.Error().Err(err).Strs("keys", keys).Msg("Cache invalidation failed")
		return fmt.Errorf("invalidate: %w", err)
	}
	c.deletes.Add(uint64(len(keys)))
	return nil
}

// GetOrCompute returns the cached value at key, computing and storing it
// on a miss. Concurrent misses on the same key are serialized by a
// short-TTL distributed lock so compute runs at most once across all
// callers; a hit may probabilistically schedule a detached background
// recomputation. When compute fails and a logically expired entry is still
// inside the staleness window, the stale value is returned as a degraded
// result and the error is logged, not raised.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc, dest any) error {
	entry, err := c.getEntry(ctx, key)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		// Lookup failure is not fatal on the read path.
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed before compute")
		entry = nil
	}

	if entry != nil && !entry.IsExpired() {
		c.hits.Add(1)
		cacheHits.Inc()
		c.maybeRefresh(key, ttl, compute)
		if err := json.Unmarshal(entry.Data, dest); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		return nil
	}

	c.misses.Add(1)
	cacheMisses.Inc()

	data, err := c.computeUnderLock(ctx, key, ttl, compute)
	if err != nil {
		if entry != nil {
			// Logically expired but still inside the staleness window.
			staleServed.Inc()
			c.logger.Warn().Err(err).Str("key", key).Msg("Compute failed, serving stale cache value")
			if uerr := json.Unmarshal(entry.Data, dest); uerr != nil {
				return fmt.Errorf("%w: %v", ErrInvalidEntry, uerr)
			}
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// Warm preloads keys through loader. Failures are logged per key; the
// returned count is the number of entries written.
func (c *Cache) Warm(ctx context.Context, keys []string, loader func(ctx context.Context, key string) (any, error), ttl time.Duration) (int, error) {
	warmed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		value, err := loader(ctx, key)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache warm-up loader failed")
			continue
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache warm-up write failed")
			continue
		}
		warmed++
	}
	return warmed, nil
}

// FlushNamespace deletes every key in this cache's namespace using
// cursor-based enumeration. Returns the number of keys deleted.
func (c *Cache) FlushNamespace(ctx context.Context) (int64, error) {
	keys, err := c.store.Scan(ctx, c.opts.Namespace+":*", 1000)
	if err != nil {
		return 0, fmt.Errorf("flush namespace %s: %w", c.opts.Namespace, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := c.store.Del(ctx, keys...)
	if err != nil {
		return deleted, fmt.Errorf("flush namespace %s: %w", c.opts.Namespace, err)
	}
	c.deletes.Add(uint64(deleted))
	return deleted, nil
}

// Stats returns a snapshot of in-process cache activity.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
	}
}

// Namespace returns the key prefix of this cache.
func (c *Cache) Namespace() string {
	return c.opts.Namespace
}

func (c *Cache) key(key string) string {
	return c.opts.Namespace + ":" + key
}

// getEntry fetches the raw envelope, expired or not. Returns ErrCacheMiss
// when the key is physically absent.
func (c *Cache) getEntry(ctx context.Context, key string) (*Entry, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return c.store.Get(ctx, c.key(key))
	})
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("cache get: %w", err)
	}

	raw, _ := result.(string)
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		// Drop the corrupted entry so the next write starts clean.
		_, _ = c.store.Del(ctx, c.key(key))
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}

func (c *Cache) setRaw(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}
	jitter := time.Duration(0)
	if c.opts.JitterMax > 0 {
		jitter = time.Duration(rand.Int63n(int64(c.opts.JitterMax) + 1))
	}

	now := time.Now()
	entry := Entry{
		Data:      data,
		ExpiresAt: now.Add(ttl + jitter),
		CachedAt:  now,
	}
	payload, err := json.Marshal(&entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	// Physical TTL outlives logical expiry by the staleness window.
	physicalTTL := ttl + jitter + c.opts.StaleTTL

	_, err = c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, c.store.Set(ctx, c.key(key), string(payload), physicalTTL)
	})
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		c.logger.Error().Err(err).Str("key", key).Msg("Cache write failed")
		return fmt.Errorf("cache set: %w", err)
	}
	c.sets.Add(1)
	cacheSets.Inc()
	return nil
}

// computeUnderLock serializes recomputation of one key across all callers
// and processes sharing the store. After acquiring the lock the cache is
// re-checked: a concurrent holder may have already stored the value, which
// keeps compute at one execution per cold key.
func (c *Cache) computeUnderLock(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (json.RawMessage, error) {
	mutex := c.locks.NewMutex("lock:"+c.key(key),
		redsync.WithExpiry(c.opts.LockTTL),
		redsync.WithTries(c.opts.LockRetries),
		redsync.WithRetryDelay(c.opts.LockRetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		// Could not serialize in time; computing directly beats failing
		// the request.
		lockFallbacks.Inc()
		c.logger.Debug().Err(err).Str("key", key).Msg("Recompute lock unavailable, computing directly")
		return c.computeAndStore(ctx, key, ttl, compute)
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			// The lock TTL releases it regardless.
			c.logger.Debug().Err(err).Str("key", key).Msg("Recompute lock release failed")
		}
	}()

	if entry, err := c.getEntry(ctx, key); err == nil && !entry.IsExpired() {
		return entry.Data, nil
	}

	return c.computeAndStore(ctx, key, ttl, compute)
}

func (c *Cache) computeAndStore(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (json.RawMessage, error) {
	value, err := compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", key, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("marshal computed value: %w", err)
	}
	if err := c.setRaw(ctx, key, data, ttl); err != nil {
		// The caller still gets the computed value; the next request
		// recomputes.
		c.logger.Warn().Err(err).Str("key", key).Msg("Storing computed value failed")
	}
	return data, nil
}

// maybeRefresh schedules a detached background recomputation with the
// configured probability. The task is fire-and-forget: it carries its own
// timeout and is not guaranteed to complete if the process exits.
func (c *Cache) maybeRefresh(key string, ttl time.Duration, compute ComputeFunc) {
	if c.opts.RefreshProbability <= 0 || rand.Float64() >= c.opts.RefreshProbability {
		return
	}
	refreshes.Inc()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
		defer cancel()

		value, err := compute(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Background refresh failed")
			return
		}
		data, err := json.Marshal(value)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Background refresh marshal failed")
			return
		}
		if err := c.setRaw(ctx, key, data, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Background refresh write failed")
		}
	}()
}
