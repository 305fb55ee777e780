// Package connection owns the client handle to the key-value store. It
// exposes one capability interface with two concrete implementations,
// standalone and cluster, and a Manager that creates the handle lazily,
// falls back from cluster to standalone transparently, and tears the
// handle down on shutdown.
package connection

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Topology identifies the connection mode of a Store.
type Topology string

const (
	// TopologyStandalone is a single-node connection.
	TopologyStandalone Topology = "standalone"

	// TopologyCluster is a cluster-mode connection.
	TopologyCluster Topology = "cluster"
)

// Store is the capability interface shared by both connection variants.
// Every method is a single store round trip; callers wrap them with a
// circuit breaker where resilience is required.
type Store interface {
	// Topology reports the connection mode.
	Topology() Topology

	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value at key with the given TTL. A zero TTL persists the key.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// SetNX writes the key only if it does not exist. Returns true when written.
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)

	// Del removes the given keys and returns the number actually deleted.
	// Deleting a missing key is not an error.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Exists reports whether the key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr increments the integer value at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the TTL of an existing key. Returns false if the key is missing.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL returns the remaining time-to-live of a key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Scan enumerates keys matching pattern with cursor-based SCAN,
	// never a blocking key listing.
	Scan(ctx context.Context, pattern string, count int64) ([]string, error)

	// Eval executes a server-side script for multi-step atomic operations.
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)

	// Ping issues a liveness probe.
	Ping(ctx context.Context) error

	// Info returns server introspection output for the given sections.
	Info(ctx context.Context, sections ...string) (string, error)

	// Universal exposes the underlying client for libraries that need the
	// raw handle (distributed locks, pipelines).
	Universal() redis.UniversalClient

	// Close tears down the connection pool.
	Close() error
}

// mapNotFound converts the client's nil-reply sentinel to ErrNotFound.
func mapNotFound(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return err
}
