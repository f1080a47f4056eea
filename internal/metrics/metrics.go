package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/queue"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsEnqueued *prometheus.CounterVec
	JobsDeduped  *prometheus.CounterVec
	JobsSent     *prometheus.CounterVec
	JobsFailed   *prometheus.CounterVec
	JobsSkipped  *prometheus.CounterVec
	SendLatency  *prometheus.HistogramVec

	BreakerSuppressed *prometheus.CounterVec
	TokensRevoked     prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_enqueued_total",
			Help: "Total number of jobs accepted into the queue.",
		}, []string{"type"}),

		JobsDeduped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_deduped_total",
			Help: "Total number of enqueue attempts dropped by the dedup window.",
		}, []string{"type"}),

		JobsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_sent_total",
			Help: "Total number of jobs delivered to the push provider.",
		}, []string{"type"}),

		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_failed_total",
			Help: "Total number of jobs marked as permanent failures.",
		}, []string{"type", "reason"}),

		JobsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_skipped_total",
			Help: "Total number of jobs skipped by their push flag.",
		}, []string{"type"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_send_seconds",
			Help:    "Latency from dequeue to provider ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		BreakerSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breaker_suppressed_total",
			Help: "Total number of direct pushes suppressed by the circuit breaker.",
		}, []string{"type"}),

		TokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_tokens_revoked_total",
			Help: "Total number of tokens revoked after a dead-device receipt.",
		}),
	}

	reg.MustRegister(
		m.JobsEnqueued,
		m.JobsDeduped,
		m.JobsSent,
		m.JobsFailed,
		m.JobsSkipped,
		m.SendLatency,
		m.BreakerSuppressed,
		m.TokensRevoked,
	)

	return m
}

// QueueHooks returns the metric callbacks expected by queue.Hooks.
// Centralises the prometheus observation calls so the queue stays
// import-free.
func (m *Metrics) QueueHooks() queue.Hooks {
	return queue.Hooks{
		OnEnqueued: func(typ domain.JobType) {
			m.JobsEnqueued.WithLabelValues(string(typ)).Inc()
		},
		OnDeduped: func(typ domain.JobType) {
			m.JobsDeduped.WithLabelValues(string(typ)).Inc()
		},
		OnSent: func(typ domain.JobType, latency time.Duration) {
			m.JobsSent.WithLabelValues(string(typ)).Inc()
			m.SendLatency.WithLabelValues(string(typ)).Observe(latency.Seconds())
		},
		OnFailed: func(typ domain.JobType, reason string) {
			m.JobsFailed.WithLabelValues(string(typ), reason).Inc()
		},
		OnSkipped: func(typ domain.JobType) {
			m.JobsSkipped.WithLabelValues(string(typ)).Inc()
		},
	}
}
