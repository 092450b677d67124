// Package metrics provides Prometheus instrumentation for the engine,
// exposed on an optional port per spec.md §6's "optional Prometheus
// port and toggle".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingress metrics.
var (
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_messages_received_total",
		Help: "Total inbound platform messages seen by the ingress pipeline.",
	}, []string{"chat_kind"})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_classifications_total",
		Help: "Total classifier verdicts, by label.",
	}, []string{"label"})

	ClassifierErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_classifier_errors_total",
		Help: "Total classifier call failures; each drops the inbound message.",
	})
)

// Request lifecycle metrics.
var (
	RequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_requests_created_total",
		Help: "Total Request rows created, by initial status.",
	}, []string{"status"})

	RequestsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_requests_claimed_total",
		Help: "Total responder claims that won the atomic updateIfStatusIn race.",
	})

	RaceLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_claim_race_lost_total",
		Help: "Total claim attempts that lost the race to a concurrent actor.",
	})

	ResponseTimeMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_response_time_minutes",
		Help:    "Working-minutes elapsed between receipt and response.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480},
	})
)

// Escalation metrics.
var (
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_alerts_fired_total",
		Help: "Total Alert rows inserted, by type and level.",
	}, []string{"alert_type", "level"})

	EscalationDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_escalation_dispatch_failures_total",
		Help: "Total recipient dispatch failures during an escalation fan-out.",
	}, []string{"channel"})

	BreachesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_breaches_total",
		Help: "Total requests marked slaBreached.",
	})
)

// Queue metrics.
var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_jobs_enqueued_total",
		Help: "Total jobs enqueued, by queue.",
	}, []string{"queue"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_jobs_failed_total",
		Help: "Total job handler failures, by queue and task type.",
	}, []string{"queue", "task_type"})
)
