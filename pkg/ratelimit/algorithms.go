package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/connection"
)

// Supplementary admission algorithms for callers that need cheaper or
// differently-shaped limits than the sliding-window log. Unlike Allow,
// these fail open: they protect convenience paths (debounced buttons,
// notification throttles), not security-sensitive ones.

// tokenBucketScript refills and consumes one token atomically. Bucket state
// lives in a hash with 'tokens' and 'last' fields; the key expires after
// two idle intervals.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local bucket = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or capacity
local last = tonumber(bucket[2]) or now
local delta = math.max(0, now - last)
local refill = math.floor(delta / interval) * refill_rate
local new_tokens = math.min(capacity, tokens + refill)
if new_tokens > 0 then
  new_tokens = new_tokens - 1
  redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
  redis.call('EXPIRE', key, interval * 2)
  return 1
else
  redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
  redis.call('EXPIRE', key, interval * 2)
  return 0
end
`

// Algorithms bundles the supplementary limiters over one store handle.
type Algorithms struct {
	store  connection.Store
	logger zerolog.Logger
}

// NewAlgorithms creates the supplementary limiter set.
func NewAlgorithms(store connection.Store, logger zerolog.Logger) *Algorithms {
	if store == nil {
		panic("store cannot be nil")
	}
	return &Algorithms{
		store:  store,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
}

// AllowFixedWindow admits up to limit events per fixed window. Cheaper than
// the sliding window but allows up to 2x bursts across window boundaries.
func (a *Algorithms) AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) bool {
	count, err := a.store.Incr(ctx, key)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Fixed window check failed, allowing (fail-open)")
		return true
	}
	if count == 1 {
		if _, err := a.store.Expire(ctx, key, window); err != nil {
			a.logger.Warn().Err(err).Str("key", key).Msg("Fixed window expiry failed")
		}
	}
	return count <= int64(limit)
}

// AllowTokenBucket admits an event when the bucket holds a token. The
// bucket refills refillRate tokens per interval up to capacity.
func (a *Algorithms) AllowTokenBucket(ctx context.Context, key string, capacity, refillRate int, interval time.Duration) bool {
	now := time.Now().Unix()
	result, err := a.store.Eval(ctx, tokenBucketScript, []string{key},
		capacity, refillRate, int64(interval.Seconds()), now)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Token bucket check failed, allowing (fail-open)")
		return true
	}
	admitted, _ := result.(int64)
	return admitted == 1
}

// AllowThrottle admits at most one event per interval.
func (a *Algorithms) AllowThrottle(ctx context.Context, key string, interval time.Duration) bool {
	ok, err := a.store.SetNX(ctx, key, fmt.Sprintf("%d", time.Now().Unix()), interval)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Throttle check failed, allowing (fail-open)")
		return true
	}
	return ok
}

// AllowDebounce admits an event only after interval of inactivity since
// the last admitted event.
func (a *Algorithms) AllowDebounce(ctx context.Context, key string, interval time.Duration) bool {
	ttl, err := a.store.TTL(ctx, key)
	if err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Debounce check failed, allowing (fail-open)")
		return true
	}
	if ttl > 0 {
		return false
	}
	if err := a.store.Set(ctx, key, fmt.Sprintf("%d", time.Now().Unix()), interval); err != nil {
		a.logger.Warn().Err(err).Str("key", key).Msg("Debounce marker write failed")
	}
	return true
}
