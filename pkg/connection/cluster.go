package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cluster is the cluster-mode Store implementation. Single-key commands
// route by slot inside the client; SCAN fans out across the masters.
type Cluster struct {
	rdb *redis.ClusterClient
}

// NewCluster wraps an existing cluster client.
func NewCluster(rdb *redis.ClusterClient) *Cluster {
	if rdb == nil {
		panic("cluster client cannot be nil")
	}
	return &Cluster{rdb: rdb}
}

// Topology reports the connection mode.
func (c *Cluster) Topology() Topology {
	return TopologyCluster
}

// Get returns the value at key, or ErrNotFound.
func (c *Cluster) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", mapNotFound(err)
	}
	return val, nil
}

// Set writes value at key with the given TTL.
func (c *Cluster) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX writes the key only if it does not exist.
func (c *Cluster) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Del removes the given keys. Keys are deleted one by one because a
// multi-key DEL may cross slot boundaries.
func (c *Cluster) Del(ctx context.Context, keys ...string) (int64, error) {
	var deleted int64
	for _, key := range keys {
		n, err := c.rdb.Del(ctx, key).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

// Exists reports whether the key exists.
func (c *Cluster) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n == 1, err
}

// Incr increments the integer value at key.
func (c *Cluster) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// Expire sets the TTL of an existing key.
func (c *Cluster) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.Expire(ctx, key, ttl).Result()
}

// TTL returns the remaining time-to-live of a key.
func (c *Cluster) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rdb.TTL(ctx, key).Result()
}

// Scan enumerates keys matching pattern on every master node.
func (c *Cluster) Scan(ctx context.Context, pattern string, count int64) ([]string, error) {
	var mu sync.Mutex
	var keys []string

	err := c.rdb.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		var cursor uint64
		for {
			batch, next, err := node.Scan(ctx, cursor, pattern, count).Result()
			if err != nil {
				return fmt.Errorf("scan %s: %w", pattern, err)
			}
			mu.Lock()
			keys = append(keys, batch...)
			mu.Unlock()
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Eval executes a server-side script. All keys must hash to one slot.
func (c *Cluster) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return c.rdb.Eval(ctx, script, keys, args...).Result()
}

// Ping issues a liveness probe.
func (c *Cluster) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Info returns server introspection output from the serving node.
func (c *Cluster) Info(ctx context.Context, sections ...string) (string, error) {
	return c.rdb.Info(ctx, sections...).Result()
}

// Universal exposes the underlying client.
func (c *Cluster) Universal() redis.UniversalClient {
	return c.rdb
}

// Close tears down the connection pools of all nodes.
func (c *Cluster) Close() error {
	return c.rdb.Close()
}
