// Package ratelimit implements distributed rate limiting against the
// shared store. The primary limiter is an atomic sliding-window log: one
// embedded server-side script prunes, counts and conditionally admits in a
// single round trip, so concurrent checks on the same key can never race.
//
// The limiter fails closed: when the store is unavailable the request is
// treated as not admitted. A transient rate-limit bypass is a greater risk
// than a transient rejection, which is the opposite default from the cache
// layer.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/breaker"
	"github.com/wcf000/rediskit/pkg/connection"
)

// ErrValidation indicates malformed rate-limit parameters. Validation
// failures fail fast and never reach the store.
var ErrValidation = errors.New("invalid rate limit parameters")

// slidingWindowScript executes prune-count-conditionally-add atomically.
// Scores are millisecond timestamps; the member carries a unique nonce so
// two requests in the same millisecond never collide. Returns 1 when the
// request is admitted, 0 when rejected.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.ceil(window / 1000))
    return 1
else
    return 0
end
`

// Limiter checks admission against the sliding-window log. All store round
// trips go through a dedicated circuit breaker so a failing store cannot
// stall request handling.
type Limiter struct {
	store   connection.Store
	breaker *breaker.Breaker
	logger  zerolog.Logger
}

// NewLimiter creates a rate limiter. A nil breaker gets a default instance
// for the "ratelimit" call category.
func NewLimiter(store connection.Store, brk *breaker.Breaker, logger zerolog.Logger) *Limiter {
	if store == nil {
		panic("store cannot be nil")
	}
	if brk == nil {
		brk = breaker.New("ratelimit", breaker.DefaultConfig())
	}
	return &Limiter{
		store:   store,
		breaker: brk,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Key derives the window key for an (endpoint, identifier) pair.
func Key(endpoint, identifier string) string {
	return fmt.Sprintf("rate:%s:%s", endpoint, identifier)
}

// Allow performs one admission check for key. It returns true when the
// request is admitted. On store unavailability or an open breaker it
// returns false together with the cause, so callers can distinguish a
// policy rejection from an outage; both deny.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key must be non-empty", ErrValidation)
	}
	if limit <= 0 {
		return false, fmt.Errorf("%w: limit must be positive (got %d)", ErrValidation, limit)
	}
	if window < time.Millisecond {
		return false, fmt.Errorf("%w: window must be positive (got %s)", ErrValidation, window)
	}

	now := time.Now().UnixMilli()
	windowMs := window.Milliseconds()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	result, err := l.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return l.store.Eval(ctx, slidingWindowScript, []string{key}, now, windowMs, limit, member)
	})
	if err != nil {
		// Fail closed.
		checksTotal.WithLabelValues("error").Inc()
		l.logger.Error().Err(err).Str("key", key).Msg("Rate limit check failed, denying request")
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	admitted, ok := result.(int64)
	if !ok {
		checksTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("rate limit check: unexpected script result %T", result)
	}

	if admitted == 1 {
		checksTotal.WithLabelValues("admitted").Inc()
		return true, nil
	}

	checksTotal.WithLabelValues("rejected").Inc()
	l.logger.Debug().
		Str("key", key).
		Int("limit", limit).
		Dur("window", window).
		Msg("Rate limit exceeded")
	return false, nil
}

// Quota describes the informational state of a fixed counter kept next to
// the sliding window. It backs response headers only; Allow is the sole
// enforcement path.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Increment bumps the informational counter for an (endpoint, identifier)
// pair, starting the window TTL on first use.
func (l *Limiter) Increment(ctx context.Context, endpoint, identifier string, window time.Duration) (int64, error) {
	key := counterKey(endpoint, identifier)
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		if _, err := l.store.Expire(ctx, key, window); err != nil {
			return count, fmt.Errorf("set rate counter expiry: %w", err)
		}
	}
	return count, nil
}

// GetQuota reads the informational counter and computes remaining quota and
// the next reset time.
func (l *Limiter) GetQuota(ctx context.Context, endpoint, identifier string, limit int, window time.Duration) (Quota, error) {
	key := counterKey(endpoint, identifier)

	var current int64
	val, err := l.store.Get(ctx, key)
	if err != nil && !errors.Is(err, connection.ErrNotFound) {
		return Quota{}, fmt.Errorf("read rate counter: %w", err)
	}
	if err == nil {
		if _, scanErr := fmt.Sscanf(val, "%d", &current); scanErr != nil {
			return Quota{}, fmt.Errorf("parse rate counter %q: %w", val, scanErr)
		}
	}

	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		return Quota{}, fmt.Errorf("read rate counter ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = window
	}

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return Quota{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Now().Add(ttl),
	}, nil
}

// RetryAfter returns the remaining window TTL for a key, used to derive the
// retry hint on rejected requests. Falls back to the full window when the
// key has no expiry yet.
func (l *Limiter) RetryAfter(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return window
	}
	return ttl
}

func counterKey(endpoint, identifier string) string {
	return fmt.Sprintf("rate_count:%s:%s", endpoint, identifier)
}
