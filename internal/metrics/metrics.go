// Package metrics exposes Prometheus collectors for the scheduler and the
// reaction pipeline. They are served on /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobFirings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_job_firings_total",
			Help: "Job firings by outcome (ok, error, panic)",
		},
		[]string{"job", "result"},
	)

	JobSkippedTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_job_skipped_ticks_total",
			Help: "Ticks dropped because the previous firing was still running",
		},
		[]string{"job"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_job_duration_seconds",
			Help:    "Duration of job firings",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	JobRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_job_running",
			Help: "1 while a job firing is in flight",
		},
		[]string{"job"},
	)

	EventsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_events_fetched_total",
			Help: "Events returned by feed polls",
		},
		[]string{"stream"},
	)

	Reactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_reactions_total",
			Help: "Per-event reactions by outcome (reacted, skipped, failed)",
		},
		[]string{"stream", "outcome"},
	)

	WatermarkAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_watermark_advances_total",
			Help: "Watermark writes that moved a stream forward",
		},
		[]string{"stream"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_circuit_breaker_state",
			Help: "Platform circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_circuit_breaker_requests_total",
			Help: "Platform calls by breaker outcome (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)
)
