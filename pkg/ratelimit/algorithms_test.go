package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/wcf000/rediskit/internal/testutil"
)

func TestAllowFixedWindow(t *testing.T) {
	store, srv := testutil.NewStore(t)
	a := NewAlgorithms(store, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, a.AllowFixedWindow(ctx, "fw:key", 3, time.Minute))
	}
	assert.False(t, a.AllowFixedWindow(ctx, "fw:key", 3, time.Minute))

	// A new window starts after expiry.
	srv.FastForward(time.Minute + time.Second)
	assert.True(t, a.AllowFixedWindow(ctx, "fw:key", 3, time.Minute))
}

func TestAllowFixedWindowFailsOpen(t *testing.T) {
	store, srv := testutil.NewStore(t)
	a := NewAlgorithms(store, zerolog.Nop())
	srv.Close()

	assert.True(t, a.AllowFixedWindow(context.Background(), "fw:down", 1, time.Minute))
}

func TestAllowTokenBucket(t *testing.T) {
	store, _ := testutil.NewStore(t)
	a := NewAlgorithms(store, zerolog.Nop())
	ctx := context.Background()

	// Capacity 2, no refill within the test horizon.
	assert.True(t, a.AllowTokenBucket(ctx, "tb:key", 2, 1, time.Hour))
	assert.True(t, a.AllowTokenBucket(ctx, "tb:key", 2, 1, time.Hour))
	assert.False(t, a.AllowTokenBucket(ctx, "tb:key", 2, 1, time.Hour))
}

func TestAllowThrottle(t *testing.T) {
	store, srv := testutil.NewStore(t)
	a := NewAlgorithms(store, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, a.AllowThrottle(ctx, "th:key", time.Minute))
	assert.False(t, a.AllowThrottle(ctx, "th:key", time.Minute))

	srv.FastForward(time.Minute + time.Second)
	assert.True(t, a.AllowThrottle(ctx, "th:key", time.Minute))
}

func TestAllowDebounce(t *testing.T) {
	store, srv := testutil.NewStore(t)
	a := NewAlgorithms(store, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, a.AllowDebounce(ctx, "db:key", time.Minute))

	// Events inside the quiet period are dropped and do not extend it.
	assert.False(t, a.AllowDebounce(ctx, "db:key", time.Minute))
	assert.False(t, a.AllowDebounce(ctx, "db:key", time.Minute))

	srv.FastForward(time.Minute + time.Second)
	assert.True(t, a.AllowDebounce(ctx, "db:key", time.Minute))
}
