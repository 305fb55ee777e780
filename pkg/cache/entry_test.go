package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryExpiry(t *testing.T) {
	fresh := Entry{ExpiresAt: time.Now().Add(time.Minute)}
	assert.False(t, fresh.IsExpired())
	assert.Greater(t, fresh.TTL(), 50*time.Second)

	stale := Entry{ExpiresAt: time.Now().Add(-time.Second)}
	assert.True(t, stale.IsExpired())
	assert.Equal(t, time.Duration(0), stale.TTL())
}

func TestEntryRoundtrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	entry := Entry{
		Data:      json.RawMessage(`{"id":1}`),
		ExpiresAt: now.Add(time.Hour),
		CachedAt:  now,
	}

	raw, err := json.Marshal(&entry)
	require.NoError(t, err)

	var got Entry
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.JSONEq(t, `{"id":1}`, string(got.Data))
	assert.True(t, got.ExpiresAt.Equal(entry.ExpiresAt))
}
