package connection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wcf000/rediskit/pkg/config"
)

// Manager owns the process's store handle. It creates the handle lazily on
// the first Get, keeps at most one live handle, and allows re-creation only
// after an explicit Shutdown. Construct one Manager per process and inject
// it into every component; there is no package-level singleton.
type Manager struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu    sync.Mutex
	store Store
}

// NewManager creates a connection manager for the given configuration.
// No connection is established until the first Get call.
func NewManager(cfg *config.Config, logger zerolog.Logger) *Manager {
	if cfg == nil {
		panic("config cannot be nil")
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.With().Str("component", "connection").Logger(),
	}
}

// Get returns the ready store handle, creating it if absent. When cluster
// mode is configured, cluster construction is attempted first; if the store
// reports that cluster mode is not enabled, the manager logs a warning and
// transparently re-constructs a standalone handle. Callers never observe
// the fallback.
func (m *Manager) Get(ctx context.Context) (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		return m.store, nil
	}

	if m.cfg.Cluster {
		store, err := m.dialCluster(ctx)
		if err == nil {
			m.store = store
			connectionsEstablished.WithLabelValues(string(TopologyCluster)).Inc()
			m.logger.Info().Str("topology", string(TopologyCluster)).Msg("Store connection established")
			return m.store, nil
		}
		if !isClusterDisabled(err) {
			connectionFailures.WithLabelValues(string(TopologyCluster)).Inc()
			return nil, fmt.Errorf("cluster connect: %w", err)
		}
		clusterFallbacks.Inc()
		m.logger.Warn().Err(err).Msg("Cluster mode not enabled, falling back to standalone")
	}

	store, err := m.dialStandalone(ctx)
	if err != nil {
		connectionFailures.WithLabelValues(string(TopologyStandalone)).Inc()
		return nil, fmt.Errorf("standalone connect: %w", err)
	}
	m.store = store
	connectionsEstablished.WithLabelValues(string(TopologyStandalone)).Inc()
	m.logger.Info().Str("topology", string(TopologyStandalone)).Msg("Store connection established")
	return m.store, nil
}

// IsHealthy issues a liveness probe against the store. It never returns an
// error; any failure, including a missing connection, reports false.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	store, err := m.Get(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Health probe failed to obtain connection")
		return false
	}
	if err := store.Ping(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Health probe ping failed")
		return false
	}
	return true
}

// Shutdown closes the handle and forgets it. Safe to call repeatedly; a
// later Get re-creates the connection.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	m.logger.Info().Msg("Store connection closed")
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func (m *Manager) dialStandalone(ctx context.Context) (Store, error) {
	var opts *redis.Options
	if m.cfg.URL != "" {
		parsed, err := redis.ParseURL(m.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: m.cfg.Addr()}
	}

	tlsCfg, err := m.cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts.TLSConfig = tlsCfg
	}
	if m.cfg.Username != "" {
		opts.Username = m.cfg.Username
	}
	if m.cfg.Password != "" {
		opts.Password = m.cfg.Password
	}
	opts.DB = m.cfg.DB
	opts.PoolSize = m.cfg.MaxConnections
	opts.DialTimeout = m.cfg.ConnectTimeout
	opts.ReadTimeout = m.cfg.SocketTimeout
	opts.WriteTimeout = m.cfg.SocketTimeout

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewStandalone(rdb), nil
}

func (m *Manager) dialCluster(ctx context.Context) (Store, error) {
	var opts *redis.ClusterOptions
	if m.cfg.URL != "" {
		parsed, err := redis.ParseClusterURL(m.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse cluster url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.ClusterOptions{Addrs: m.cfg.ClusterNodes}
	}

	tlsCfg, err := m.cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opts.TLSConfig = tlsCfg
	}
	if m.cfg.Username != "" {
		opts.Username = m.cfg.Username
	}
	if m.cfg.Password != "" {
		opts.Password = m.cfg.Password
	}
	opts.PoolSize = m.cfg.MaxConnections
	opts.DialTimeout = m.cfg.ConnectTimeout
	opts.ReadTimeout = m.cfg.SocketTimeout
	opts.WriteTimeout = m.cfg.SocketTimeout

	rdb := redis.NewClusterClient(opts)
	// A simple command triggers the cluster bootstrap and surfaces
	// "cluster support disabled" from non-cluster stores.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewCluster(rdb), nil
}

// isClusterDisabled reports whether the error means the store is reachable
// but not running in cluster mode. Redis replies "cluster support disabled";
// some Valkey builds phrase it "cluster mode is not enabled".
func isClusterDisabled(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cluster support disabled") ||
		strings.Contains(msg, "cluster mode is not enabled")
}
