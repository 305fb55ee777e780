package cache

import (
	"encoding/json"
	"time"
)

// Entry is the stored envelope around a cached value. The envelope carries
// its own logical expiry: the physical store TTL runs longer by the
// configured staleness window, so a logically expired entry remains
// readable as a bounded stale fallback when recomputation fails.
type Entry struct {
	// Data is the serialized value.
	Data json.RawMessage `json:"data"`

	// ExpiresAt is when the entry becomes logically stale.
	ExpiresAt time.Time `json:"expires_at"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry is logically stale.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTL returns the time until logical expiry. Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
