package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Voting Metrics
var (
	// VotesCastTotal tracks accepted votes by target kind and direction
	VotesCastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_votes_cast_total",
			Help: "Total votes written to the ledger by target kind and direction",
		},
		[]string{"target_kind", "direction"},
	)

	// VoteErrorsTotal tracks rejected or failed votes by error type
	VoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_vote_errors_total",
			Help: "Total failed vote attempts by error type",
		},
		[]string{"type"},
	)
)

// HTTP Metrics
var (
	// HTTPRequestsTotal tracks requests by method, route template and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// RateLimitedTotal tracks requests rejected by the rate limiter
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total requests rejected with 429",
		},
	)
)

// AI Metrics
var (
	// AIRequestsTotal tracks generative API calls by operation and status
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackit_ai_requests_total",
			Help: "Total generative API calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
