package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/breaker"
	"github.com/wcf000/rediskit/pkg/connection"
)

// Policy names the eviction policy a facade communicates to the store
// operator. The facades hold no ordering metadata and perform no eviction
// themselves: all five share one implementation, a namespace prefix plus a
// default TTL, and delegate eviction entirely to the store's configured
// memory-limit policy (for example maxmemory-policy volatile-lru). The
// name states intent; without a memory-constrained store the eviction
// order is untested and unguaranteed.
type Policy string

const (
	// PolicyFIFO intends first-in-first-out eviction.
	PolicyFIFO Policy = "fifo"

	// PolicyLRU intends least-recently-used eviction.
	PolicyLRU Policy = "lru"

	// PolicyLFU intends least-frequently-used eviction.
	PolicyLFU Policy = "lfu"

	// PolicyMRU intends most-recently-used eviction.
	PolicyMRU Policy = "mru"

	// PolicyLIFO intends last-in-first-out eviction.
	PolicyLIFO Policy = "lifo"
)

// Facade is a namespaced cache wrapper carrying an intended eviction
// policy. See Policy for the delegation model.
type Facade struct {
	cache  *Cache
	policy Policy
}

// NewFacade creates a facade for the given policy. Entries live under the
// policy name as their namespace with defaultTTL when no TTL is passed.
func NewFacade(store connection.Store, brk *breaker.Breaker, policy Policy, defaultTTL time.Duration, logger zerolog.Logger) *Facade {
	opts := DefaultOptions()
	opts.Namespace = string(policy)
	if defaultTTL > 0 {
		opts.DefaultTTL = defaultTTL
	}
	return &Facade{
		cache:  New(store, brk, opts, logger),
		policy: policy,
	}
}

// NewFIFO creates the first-in-first-out facade.
func NewFIFO(store connection.Store, brk *breaker.Breaker, defaultTTL time.Duration, logger zerolog.Logger) *Facade {
	return NewFacade(store, brk, PolicyFIFO, defaultTTL, logger)
}

// NewLRU creates the least-recently-used facade.
func NewLRU(store connection.Store, brk *breaker.Breaker, defaultTTL time.Duration, logger zerolog.Logger) *Facade {
	return NewFacade(store, brk, PolicyLRU, defaultTTL, logger)
}

// NewLFU creates the least-frequently-used facade.
func NewLFU(store connection.Store, brk *breaker.Breaker, defaultTTL time.Duration, logger zerolog.Logger) *Facade {
	return NewFacade(store, brk, PolicyLFU, defaultTTL, logger)
}

// NewMRU creates the most-recently-used facade.
func NewMRU(store connection.Store, brk *breaker.Breaker, defaultTTL time.Duration, logger zerolog.Logger) *Facade {
	return NewFacade(store, brk, PolicyMRU, defaultTTL, logger)
}

// NewLIFO creates the last-in-first-out facade.
func NewLIFO(store connection.Store, brk *breaker.Breaker, defaultTTL time.Duration, logger zerolog.Logger) *Facade {
	return NewFacade(store, brk, PolicyLIFO, defaultTTL, logger)
}

// Policy returns the intended eviction policy.
func (f *Facade) Policy() Policy {
	return f.policy
}

// Get retrieves the value at key into dest.
func (f *Facade) Get(ctx context.Context, key string, dest any) error {
	return f.cache.Get(ctx, key, dest)
}

// Set stores value at key. A zero ttl uses the facade default.
func (f *Facade) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return f.cache.Set(ctx, key, value, ttl)
}

// Delete removes the key. Deleting an absent key is a no-op.
func (f *Facade) Delete(ctx context.Context, key string) error {
	return f.cache.Invalidate(ctx, key)
}

// Clear removes every entry in this facade's namespace.
func (f *Facade) Clear(ctx context.Context) (int64, error) {
	return f.cache.FlushNamespace(ctx)
}
