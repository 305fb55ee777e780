// Package httpmw provides HTTP middleware integrating the rate limiter
// and cache layers with standard net/http handlers.
package httpmw

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/cache"
	"github.com/wcf000/rediskit/pkg/ratelimit"
)

// KeyFunc derives the rate-limit identity for a request, typically the
// client IP or an API key.
type KeyFunc func(r *http.Request) string

// ClientIP is the default KeyFunc: the remote address without the port.
func ClientIP(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}

// RateLimitConfig configures the rate-limiting middleware.
type RateLimitConfig struct {
	// Limit is the number of admitted requests per Window.
	Limit int

	// Window is the sliding-window duration.
	Window time.Duration

	// Endpoint names the protected route in window keys. Empty uses the
	// request path, which splits quota per path.
	Endpoint string

	// KeyFunc identifies the caller; nil uses ClientIP.
	KeyFunc KeyFunc
}

// RateLimit wraps next with a sliding-window admission check. Rejected
// requests receive 429 with a Retry-After hint; store outages receive 503,
// because the limiter denies rather than bypasses when it cannot count.
// Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers.
func RateLimit(limiter *ratelimit.Limiter, cfg RateLimitConfig, logger zerolog.Logger, next http.Handler) http.Handler {
	if limiter == nil {
		panic("limiter cannot be nil")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = ClientIP
	}
	log := logger.With().Str("component", "httpmw").Logger()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		identifier := keyFn(r)
		key := ratelimit.Key(endpoint, identifier)

		allowed, err := limiter.Allow(r.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Rate limit check unavailable")
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(cfg.Window)))
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		quota, qerr := limiter.GetQuota(r.Context(), endpoint, identifier, cfg.Limit, cfg.Window)
		if qerr != nil {
			// Headers are informational; serve without them.
			quota = ratelimit.Quota{Limit: cfg.Limit, Reset: time.Now().Add(cfg.Window)}
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(quota.Reset.Unix(), 10))

		if !allowed {
			retryAfter := limiter.RetryAfter(r.Context(), key, cfg.Window)
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
			log.Debug().
				Str("endpoint", endpoint).
				Str("identifier", identifier).
				Msg("Request rejected by rate limit")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if _, err := limiter.Increment(r.Context(), endpoint, identifier, cfg.Window); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Quota counter update failed")
		}

		next.ServeHTTP(w, r)
	})
}

// InvalidateAfter wraps next and, when the response indicates success on a
// mutating method, invalidates the cache keys derived from the request.
// Use it on write endpoints so reads never observe a deleted or updated
// resource from cache.
func InvalidateAfter(c *cache.Cache, keysFor func(r *http.Request) []string, logger zerolog.Logger, next http.Handler) http.Handler {
	if c == nil {
		panic("cache cannot be nil")
	}
	log := logger.With().Str("component", "httpmw").Logger()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if !mutating(r.Method) || rec.status >= 400 {
			return
		}
		keys := keysFor(r)
		if len(keys) == 0 {
			return
		}
		if err := c.Invalidate(r.Context(), keys...); err != nil {
			log.Error().Err(err).Strs("keys", keys).Msg("Post-write invalidation failed")
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
