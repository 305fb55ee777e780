package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// checksTotal counts sliding-window admission checks by outcome.
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rediskit_ratelimit_checks_total",
			Help: "Total number of rate limit admission checks by outcome",
		},
		[]string{"outcome"}, // "admitted", "rejected", "error"
	)
)
