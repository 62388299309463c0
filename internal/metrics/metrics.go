package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per provider and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalator_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider and method
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalator_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escalator_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// RPCRetriesTotal counts backoff retries of idempotent reads
	RPCRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalator_rpc_retries_total",
			Help: "Total number of retried RPC reads",
		},
		[]string{"method"},
	)

	// SubmissionsTotal tracks initial sends and re-submissions
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalator_submissions_total",
			Help: "Total number of transaction submissions",
		},
		[]string{"kind", "result"},
	)

	// OutcomesTotal tracks terminal states of escalation sequences
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalator_outcomes_total",
			Help: "Total number of finished escalation sequences",
		},
		[]string{"outcome"},
	)

	// EscalationRounds observes how many rounds a sequence needed
	EscalationRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "escalator_escalation_rounds",
			Help:    "Escalation rounds per finished sequence",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)

	// LatestBaseFee is the most recently observed base fee in wei
	LatestBaseFee = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escalator_latest_base_fee_wei",
			Help: "Base fee of the latest block seen by the estimator",
		},
	)
)
