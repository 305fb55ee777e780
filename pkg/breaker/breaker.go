// Package breaker provides per-category circuit breakers around store
// round trips. Only transient failures (timeouts, connection errors) count
// toward opening the circuit; breaker-open short circuits are reported as
// ErrCircuitOpen, distinct from real store errors, and never count as new
// failures.
//
// Breaker state is process-local. Each process trips and recovers on its
// own observations; a fleet does not share circuit state.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wcf000/rediskit/pkg/connection"
)

// ErrCircuitOpen is returned when a call is short-circuited by an open
// breaker. It is distinct from any store-level error.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config holds the thresholds for one call category.
type Config struct {
	// FailureThreshold is the number of consecutive transient failures
	// before the breaker opens.
	FailureThreshold uint32

	// RecoveryTimeout is how long the breaker stays open before allowing
	// a single trial call.
	RecoveryTimeout time.Duration
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Breaker wraps one category of store operations. Use a separate instance
// per category (cache ops, rate-limit checks, service checks) so one
// failing path does not short-circuit the others.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates a breaker for the named call category.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultConfig().RecoveryTimeout
	}

	settings := gobreaker.Settings{
		Name: name,
		// A single trial call probes recovery in half-open state.
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Non-transient errors are returned to the caller but do not
		// count toward opening the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			logStateChange(name, from, to)
		},
	}

	breakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	return &Breaker{
		name: name,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs op through the breaker. When the circuit is open the op is
// not invoked and ErrCircuitOpen is returned immediately.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return op(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			shortCircuits.WithLabelValues(b.name).Inc()
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
		}
		if IsTransient(err) {
			transientFailures.WithLabelValues(b.name).Inc()
		}
		return nil, err
	}
	return result, nil
}

// ExecuteWithFallback runs op through the breaker and, on any error,
// returns the fallback sentinel instead. The fallback path never returns
// an error; the failure is logged by the caller-provided fallback.
func (b *Breaker) ExecuteWithFallback(ctx context.Context, op func(ctx context.Context) (any, error), fallback func(err error) any) any {
	result, err := b.Execute(ctx, op)
	if err != nil {
		return fallback(err)
	}
	return result
}

// State reports the current breaker state: "closed", "open" or "half-open".
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Name returns the call category this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// IsTransient reports whether an error belongs to the class that should
// count toward opening the circuit: timeouts and connection-level
// failures. Missing keys, validation errors and caller cancellation are
// not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, connection.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, probe := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"connection pool timeout",
	} {
		if strings.Contains(msg, probe) {
			return true
		}
	}
	return false
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
