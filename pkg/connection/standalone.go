package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Standalone is the single-node Store implementation.
type Standalone struct {
	rdb *redis.Client
}

// NewStandalone wraps an existing single-node client.
func NewStandalone(rdb *redis.Client) *Standalone {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	return &Standalone{rdb: rdb}
}

// Topology reports the connection mode.
func (s *Standalone) Topology() Topology {
	return TopologyStandalone
}

// Get returns the value at key, or ErrNotFound.
func (s *Standalone) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", mapNotFound(err)
	}
	return val, nil
}

// Set writes value at key with the given TTL.
func (s *Standalone) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX writes the key only if it does not exist.
func (s *Standalone) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the given keys.
func (s *Standalone) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.rdb.Del(ctx, keys...).Result()
}

// Exists reports whether the key exists.
func (s *Standalone) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	return n == 1, err
}

// Incr increments the integer value at key.
func (s *Standalone) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

// Expire sets the TTL of an existing key.
func (s *Standalone) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.Expire(ctx, key, ttl).Result()
}

// TTL returns the remaining time-to-live of a key.
func (s *Standalone) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.rdb.TTL(ctx, key).Result()
}

// Scan enumerates keys matching pattern with cursor-based SCAN.
func (s *Standalone) Scan(ctx context.Context, pattern string, count int64) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Eval executes a server-side script.
func (s *Standalone) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return s.rdb.Eval(ctx, script, keys, args...).Result()
}

// Ping issues a liveness probe.
func (s *Standalone) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Info returns server introspection output.
func (s *Standalone) Info(ctx context.Context, sections ...string) (string, error) {
	return s.rdb.Info(ctx, sections...).Result()
}

// Universal exposes the underlying client.
func (s *Standalone) Universal() redis.UniversalClient {
	return s.rdb
}

// Close tears down the connection pool.
func (s *Standalone) Close() error {
	return s.rdb.Close()
}
