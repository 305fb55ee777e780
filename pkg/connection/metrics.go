package connection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// connectionsEstablished counts successful connection establishments by topology.
	connectionsEstablished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rediskit_connections_established_total",
			Help: "Total number of store connections established",
		},
		[]string{"topology"}, // "standalone", "cluster"
	)

	// connectionFailures counts failed connection attempts by topology.
	connectionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rediskit_connection_failures_total",
			Help: "Total number of failed store connection attempts",
		},
		[]string{"topology"},
	)

	// clusterFallbacks counts transparent cluster-to-standalone fallbacks.
	clusterFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rediskit_cluster_fallbacks_total",
			Help: "Total number of fallbacks from cluster to standalone mode",
		},
	)
)
