// Package config loads the toolkit configuration from environment variables
// with sensible defaults and validates it before use.
//
// Environment Variables:
//
// Connection:
//   - REDIS_HOST: Store host (default: 127.0.0.1)
//   - REDIS_PORT: Store port (default: 6379)
//   - REDIS_USERNAME: Username for ACL authentication
//   - REDIS_PASSWORD: Password or token
//   - REDIS_URL: Connection URL; takes precedence over host/port when set
//   - REDIS_DB: Database index 0-15 (default: 0)
//   - REDIS_CLUSTER: Enable cluster bootstrap (default: false)
//   - REDIS_CLUSTER_NODES: Comma-separated host:port pairs for cluster bootstrap
//   - REDIS_MAX_CONNECTIONS: Connection pool size (default: 10)
//   - REDIS_SOCKET_TIMEOUT: Read/write timeout (default: 5s)
//   - REDIS_CONNECT_TIMEOUT: Dial timeout (default: 2s)
//
// TLS:
//   - REDIS_TLS: Enable TLS (default: false)
//   - REDIS_TLS_CERT: Client certificate path
//   - REDIS_TLS_KEY: Client key path
//   - REDIS_TLS_CA: CA bundle path
//
// Resilience:
//   - REDIS_FAILURE_THRESHOLD: Consecutive failures before the breaker opens (default: 3)
//   - REDIS_RECOVERY_TIMEOUT: Open-state duration before a trial call (default: 30s)
//
// Caching:
//   - CACHE_DEFAULT_TTL: Default cache entry TTL (default: 1h)
//
// A .env file in the working directory is loaded when present.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the toolkit. Load it once and pass it
// to the component constructors; there is no package-level state.
type Config struct {
	// Connection settings
	Host         string
	Port         int
	Username     string
	Password     string
	URL          string
	DB           int
	Cluster      bool
	ClusterNodes []string

	// Pool and timeouts
	MaxConnections int
	SocketTimeout  time.Duration
	ConnectTimeout time.Duration

	// TLS material, loaded lazily via TLSConfig
	TLS         bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string

	// Circuit breaker settings shared by all call categories
	FailureThreshold uint32
	RecoveryTimeout  time.Duration

	// Default TTL applied when cache callers pass zero
	DefaultTTL time.Duration
}

// Load reads configuration from the environment. A .env file is honored
// when present but never required.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Host:           getEnv("REDIS_HOST", "127.0.0.1"),
		Port:           getEnvInt("REDIS_PORT", 6379),
		Username:       getEnv("REDIS_USERNAME", ""),
		Password:       getEnv("REDIS_PASSWORD", ""),
		URL:            getEnv("REDIS_URL", ""),
		DB:             getEnvInt("REDIS_DB", 0),
		Cluster:        getEnvBool("REDIS_CLUSTER", false),
		ClusterNodes:   getEnvList("REDIS_CLUSTER_NODES"),
		MaxConnections: getEnvInt("REDIS_MAX_CONNECTIONS", 10),
		SocketTimeout:  getEnvDuration("REDIS_SOCKET_TIMEOUT", 5*time.Second),
		ConnectTimeout: getEnvDuration("REDIS_CONNECT_TIMEOUT", 2*time.Second),

		TLS:         getEnvBool("REDIS_TLS", false),
		TLSCertFile: getEnv("REDIS_TLS_CERT", ""),
		TLSKeyFile:  getEnv("REDIS_TLS_KEY", ""),
		TLSCAFile:   getEnv("REDIS_TLS_CA", ""),

		FailureThreshold: uint32(getEnvInt("REDIS_FAILURE_THRESHOLD", 3)),
		RecoveryTimeout:  getEnvDuration("REDIS_RECOVERY_TIMEOUT", 30*time.Second),

		DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", time.Hour),
	}
}

// Validate checks the configuration for values that would prevent the
// toolkit from starting safely.
func (c *Config) Validate() error {
	if c.URL == "" && c.Host == "" {
		return fmt.Errorf("either REDIS_URL or REDIS_HOST must be set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("REDIS_PORT must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15 (got %d)", c.DB)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("REDIS_MAX_CONNECTIONS must be positive (got %d)", c.MaxConnections)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("REDIS_FAILURE_THRESHOLD must be positive")
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("REDIS_RECOVERY_TIMEOUT must be positive")
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}
	if c.Cluster && c.URL == "" && len(c.ClusterNodes) == 0 {
		return fmt.Errorf("REDIS_CLUSTER requires REDIS_URL or REDIS_CLUSTER_NODES")
	}
	for _, node := range c.ClusterNodes {
		if !strings.Contains(node, ":") {
			return fmt.Errorf("cluster node %q must be host:port", node)
		}
	}
	if c.TLS && (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("REDIS_TLS_CERT and REDIS_TLS_KEY must be set together")
	}
	return nil
}

// Addr returns the standalone host:port address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TLSConfig builds a *tls.Config from the configured certificate material.
// Returns nil when TLS is disabled.
func (c *Config) TLSConfig() (*tls.Config, error) {
	if !c.TLS {
		return nil, nil
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.TLSCertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if c.TLSCAFile != "" {
		ca, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("CA bundle %s contains no certificates", c.TLSCAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are treated as seconds for parity with the
		// environment surface of typical Redis deployments.
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	nodes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			nodes = append(nodes, trimmed)
		}
	}
	return nodes
}
