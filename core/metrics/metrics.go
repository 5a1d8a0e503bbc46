// Package metrics holds the Prometheus collectors shared by the bot runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "labbot"

var (
	// Updates counts inbound updates by kind (message, callback, document).
	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_total",
		Help:      "Inbound Telegram updates by kind.",
	}, []string{"kind"})

	// RateLimited counts updates dropped by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Updates rejected by the per-user rate limiter.",
	})

	// HandlerDuration observes routed handler latency by handler and status.
	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handler_duration_seconds",
		Help:      "Routed handler duration.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"handler", "status"})

	// OutboundMessages counts reply messages produced per handled update.
	OutboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_messages_total",
		Help:      "Messages sent or edited while handling updates.",
	})

	// SenderJobs counts async sender jobs by result (ok, fail, dropped).
	SenderJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sender_jobs_total",
		Help:      "Asynchronous send jobs by result.",
	}, []string{"result"})

	// Broadcasts counts broadcast deliveries by result (sent, failed).
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_deliveries_total",
		Help:      "Broadcast deliveries by result.",
	}, []string{"result"})

	// StagedFiles counts upload staging attempts by result (ok, rejected, fail).
	StagedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staged_files_total",
		Help:      "Upload staging attempts by result.",
	}, []string{"result"})

	// StagedBytes sums bytes written by the staging service.
	StagedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staged_bytes_total",
		Help:      "Bytes written to the upload directory.",
	})

	// Commits counts conversation commits by workflow and result.
	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversation_commits_total",
		Help:      "Workflow completions by workflow and result.",
	}, []string{"workflow", "result"})

	// APIRetries counts Bot API requests repeated after a transient network error.
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_retries_total",
		Help:      "Bot API requests retried by method.",
	}, []string{"method"})
)
