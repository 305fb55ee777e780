// Package health aggregates connection and performance status for
// readiness probes. Reports are cached briefly so frequent polls do not
// hammer the store.
package health

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/connection"
)

// Status classifies the aggregate store health.
type Status string

const (
	// StatusHealthy means the store responds and reports counters.
	StatusHealthy Status = "healthy"

	// StatusDegraded means the store responds but introspection failed.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means the liveness probe failed.
	StatusUnhealthy Status = "unhealthy"
)

// Report is the aggregated health snapshot.
type Report struct {
	Status           Status    `json:"status"`
	Connected        bool      `json:"connected"`
	OpsPerSec        int64     `json:"ops_per_sec"`
	MemoryUsedBytes  int64     `json:"memory_used_bytes"`
	ConnectedClients int64     `json:"connected_clients"`
	CheckedAt        time.Time `json:"checked_at"`
}

// Monitor produces health reports from the connection manager. It never
// returns an error; failures classify the report instead.
type Monitor struct {
	manager  *connection.Manager
	cacheTTL time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	last   Report
	lastAt time.Time
}

// NewMonitor creates a health monitor. cacheTTL bounds how often the store
// is actually probed; zero uses 30 seconds.
func NewMonitor(manager *connection.Manager, cacheTTL time.Duration, logger zerolog.Logger) *Monitor {
	if manager == nil {
		panic("connection manager cannot be nil")
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Monitor{
		manager:  manager,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "health").Logger(),
	}
}

// Report returns the current health snapshot, re-probing the store only
// when the cached snapshot is older than the cache TTL.
func (m *Monitor) Report(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastAt) < m.cacheTTL && !m.lastAt.IsZero() {
		return m.last
	}

	report := m.probe(ctx)
	m.last = report
	m.lastAt = time.Now()
	return report
}

// Handler serves the report as JSON: 200 for healthy and degraded, 503 for
// unhealthy.
func (m *Monitor) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := m.Report(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

func (m *Monitor) probe(ctx context.Context) Report {
	report := Report{CheckedAt: time.Now()}

	if !m.manager.IsHealthy(ctx) {
		report.Status = StatusUnhealthy
		return report
	}
	report.Connected = true

	store, err := m.manager.Get(ctx)
	if err != nil {
		report.Status = StatusUnhealthy
		return report
	}

	info, err := store.Info(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Store introspection failed")
		report.Status = StatusDegraded
		return report
	}

	counters := parseInfo(info)
	report.OpsPerSec = counters["instantaneous_ops_per_sec"]
	report.MemoryUsedBytes = counters["used_memory"]
	report.ConnectedClients = counters["connected_clients"]
	report.Status = StatusHealthy
	return report
}

// parseInfo extracts integer fields from INFO output. Unknown or absent
// fields read as zero.
func parseInfo(info string) map[string]int64 {
	fields := make(map[string]int64)
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			fields[name] = n
		}
	}
	return fields
}
