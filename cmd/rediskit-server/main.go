// Command rediskit-server exposes the caching and rate-limiting layers
// over HTTP: a health endpoint, Prometheus metrics and a small cached
// key-value API guarded by the sliding-window limiter.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/cache"
	"github.com/wcf000/rediskit/pkg/config"
	"github.com/wcf000/rediskit/pkg/connection"
	"github.com/wcf000/rediskit/pkg/health"
	"github.com/wcf000/rediskit/pkg/httpmw"
	"github.com/wcf000/rediskit/pkg/logging"
	"github.com/wcf000/rediskit/pkg/ratelimit"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(envOr("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := connection.NewManager(cfg, logger)
	store, err := manager.Get(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Store connection failed")
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Store shutdown failed")
		}
	}()

	opts := cache.DefaultOptions()
	opts.DefaultTTL = cfg.DefaultTTL
	c := cache.New(store, nil, opts, logger)
	limiter := ratelimit.NewLimiter(store, nil, logger)
	monitor := health.NewMonitor(manager, 30*time.Second, logger)

	kv := httpmw.RateLimit(limiter, httpmw.RateLimitConfig{
		Limit:    100,
		Window:   time.Minute,
		Endpoint: "kv",
	}, logger, kvHandler(c, logger))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", monitor.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/kv/", kv)

	srv := &http.Server{
		Addr:              ":" + envOr("PORT", "8080"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}

// kvHandler serves GET/PUT/DELETE on /kv/{key} against the cache layer.
func kvHandler(c *cache.Cache, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/kv/")
		if key == "" {
			http.Error(w, "key required", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			var value json.RawMessage
			if err := c.Get(r.Context(), key, &value); err != nil {
				if errors.Is(err, cache.ErrCacheMiss) {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				logger.Error().Err(err).Str("key", key).Msg("Cache read failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(value)

		case http.MethodPut:
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
			if err != nil {
				http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
				return
			}
			var value json.RawMessage
			if err := json.Unmarshal(body, &value); err != nil {
				http.Error(w, "body must be JSON", http.StatusBadRequest)
				return
			}
			if err := c.Set(r.Context(), key, value, 0); err != nil {
				logger.Error().Err(err).Str("key", key).Msg("Cache write failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case http.MethodDelete:
			if err := c.Invalidate(r.Context(), key); err != nil {
				logger.Error().Err(err).Str("key", key).Msg("Cache invalidation failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
