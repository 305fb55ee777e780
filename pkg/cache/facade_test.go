package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcf000/rediskit/internal/testutil"
)

func TestFacadeConstructors(t *testing.T) {
	store, _ := testutil.NewStore(t)

	tests := []struct {
		policy Policy
		build  func() *Facade
	}{
		{PolicyFIFO, func() *Facade { return NewFIFO(store, nil, time.Minute, zerolog.Nop()) }},
		{PolicyLRU, func() *Facade { return NewLRU(store, nil, time.Minute, zerolog.Nop()) }},
		{PolicyLFU, func() *Facade { return NewLFU(store, nil, time.Minute, zerolog.Nop()) }},
		{PolicyMRU, func() *Facade { return NewMRU(store, nil, time.Minute, zerolog.Nop()) }},
		{PolicyLIFO, func() *Facade { return NewLIFO(store, nil, time.Minute, zerolog.Nop()) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := tt.build()
			assert.Equal(t, tt.policy, f.Policy())
		})
	}
}

func TestFacadeRoundtrip(t *testing.T) {
	store, _ := testutil.NewStore(t)
	f := NewLRU(store, nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, "k", "value", 0))

	var got string
	require.NoError(t, f.Get(ctx, "k", &got))
	assert.Equal(t, "value", got)

	require.NoError(t, f.Delete(ctx, "k"))
	assert.ErrorIs(t, f.Get(ctx, "k", &got), ErrCacheMiss)

	// Deleting again is a no-op.
	require.NoError(t, f.Delete(ctx, "k"))
}

func TestFacadeNamespaceIsolation(t *testing.T) {
	store, _ := testutil.NewStore(t)
	lru := NewLRU(store, nil, time.Minute, zerolog.Nop())
	lfu := NewLFU(store, nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, lru.Set(ctx, "shared", "from-lru", 0))
	require.NoError(t, lfu.Set(ctx, "shared", "from-lfu", 0))

	var got string
	require.NoError(t, lru.Get(ctx, "shared", &got))
	assert.Equal(t, "from-lru", got)

	require.NoError(t, lfu.Get(ctx, "shared", &got))
	assert.Equal(t, "from-lfu", got)
}

func TestFacadeClear(t *testing.T) {
	store, _ := testutil.NewStore(t)
	fifo := NewFIFO(store, nil, time.Minute, zerolog.Nop())
	lru := NewLRU(store, nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, fifo.Set(ctx, "a", 1, 0))
	require.NoError(t, fifo.Set(ctx, "b", 2, 0))
	require.NoError(t, lru.Set(ctx, "a", 3, 0))

	deleted, err := fifo.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Other namespaces are untouched.
	var got int
	require.NoError(t, lru.Get(ctx, "a", &got))
	assert.Equal(t, 3, got)
}
