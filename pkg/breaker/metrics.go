package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	// breakerState tracks the current state per call category
	// (0 = closed, 1 = open, 2 = half-open).
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rediskit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// shortCircuits counts calls rejected without reaching the store.
	shortCircuits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rediskit_breaker_short_circuits_total",
			Help: "Total number of calls short-circuited by an open breaker",
		},
		[]string{"name"},
	)

	// transientFailures counts failures that counted toward opening.
	transientFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rediskit_breaker_failures_total",
			Help: "Total number of transient failures observed by the breaker",
		},
		[]string{"name"},
	)
)

func logStateChange(name string, from, to gobreaker.State) {
	event := log.Info()
	if to == gobreaker.StateOpen {
		event = log.Error()
	}
	event.
		Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Circuit breaker state changed")
}
