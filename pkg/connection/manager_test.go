package connection

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcf000/rediskit/pkg/config"
)

func testConfig(t *testing.T, srv *miniredis.Miniredis) *config.Config {
	t.Helper()
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)
	return &config.Config{
		Host:             srv.Host(),
		Port:             port,
		MaxConnections:   5,
		SocketTimeout:    time.Second,
		ConnectTimeout:   time.Second,
		FailureThreshold: 3,
		RecoveryTimeout:  time.Second,
		DefaultTTL:       time.Minute,
	}
}

func TestManagerLazySingleHandle(t *testing.T) {
	srv := miniredis.RunT(t)
	m := NewManager(testConfig(t, srv), zerolog.Nop())
	ctx := context.Background()

	first, err := m.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, TopologyStandalone, first.Topology())

	second, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestManagerIsHealthy(t *testing.T) {
	srv := miniredis.RunT(t)
	m := NewManager(testConfig(t, srv), zerolog.Nop())
	ctx := context.Background()

	assert.True(t, m.IsHealthy(ctx))

	srv.Close()
	assert.False(t, m.IsHealthy(ctx))
}

func TestManagerShutdownIdempotent(t *testing.T) {
	srv := miniredis.RunT(t)
	m := NewManager(testConfig(t, srv), zerolog.Nop())
	ctx := context.Background()

	_, err := m.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())

	// A later Get re-creates the connection.
	store, err := m.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
}

func TestManagerGetFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testConfig(t, srv)
	srv.Close()

	m := NewManager(cfg, zerolog.Nop())
	_, err := m.Get(context.Background())
	assert.Error(t, err)
}

func TestIsClusterDisabled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"redis phrasing", errors.New("ERR This instance has cluster support disabled"), true},
		{"valkey phrasing", errors.New("ERR cluster mode is not enabled"), true},
		{"mixed case", errors.New("Cluster Support Disabled"), true},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isClusterDisabled(tt.err))
		})
	}
}

func TestStandaloneOperations(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testConfig(t, srv)
	m := NewManager(cfg, zerolog.Nop())
	ctx := context.Background()

	store, err := m.Get(ctx)
	require.NoError(t, err)

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
		val, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", val)

		exists, err := store.Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("setnx", func(t *testing.T) {
		ok, err := store.SetNX(ctx, "nx", "first", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetNX(ctx, "nx", "second", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("incr and expire", func(t *testing.T) {
		n, err := store.Incr(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		ok, err := store.Expire(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ttl, err := store.TTL(ctx, "counter")
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("scan", func(t *testing.T) {
		for _, k := range []string{"scan:a", "scan:b", "scan:c", "other:x"} {
			require.NoError(t, store.Set(ctx, k, "1", time.Minute))
		}
		keys, err := store.Scan(ctx, "scan:*", 2)
		require.NoError(t, err)
		assert.Len(t, keys, 3)
	})

	t.Run("del", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", "1", time.Minute))
		n, err := store.Del(ctx, "gone", "never-existed")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("eval", func(t *testing.T) {
		result, err := store.Eval(ctx, "return redis.call('SET', KEYS[1], ARGV[1])", []string{"lua"}, "ok")
		require.NoError(t, err)
		_ = result

		val, err := store.Get(ctx, "lua")
		require.NoError(t, err)
		assert.Equal(t, "ok", val)
	})
}
