package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvitationEvents counts invitation lifecycle transitions (sent|resent|accepted|revoked).
	InvitationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casavia_invitation_events_total",
			Help: "Total number of invitation lifecycle events",
		},
		[]string{"event"},
	)

	// ActiveSessions tracks session rows that have not expired or been revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "casavia_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// SessionTrackingFailures counts swallowed errors in the session metadata tracker.
	SessionTrackingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casavia_session_tracking_failures_total",
			Help: "Total number of session tracking errors that were logged and dropped",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casavia_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
