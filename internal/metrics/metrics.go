package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// DurationBuckets covers fast store calls up to simulated processor latency (seconds)
var DurationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 7.5, 10, 15, 30}

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "jobs_enqueued_total",
		Help:      "Jobs handed to the queue, partitioned by job type and result.",
	}, []string{"type", "result"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "jobs_processed_total",
		Help:      "Jobs dequeued by the dispatcher, partitioned by job type and result.",
	}, []string{"type", "result"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "job_duration_seconds",
		Help:      "Handler execution time in seconds.",
		Buckets:   DurationBuckets,
	}, []string{"type"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook delivery attempts, partitioned by event and result.",
	}, []string{"event", "result"})

	WebhookDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "dead_lettered_total",
		Help:      "Webhook logs moved to the failed state.",
	})

	PollerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retry_poller",
		Name:      "runs_total",
		Help:      "Retry poller scans, partitioned by result.",
	}, []string{"result"})

	PollerRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retry_poller",
		Name:      "requeued_total",
		Help:      "Webhook logs requeued for another delivery attempt.",
	})

	IdempotencyLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "idempotency",
		Name:      "lookups_total",
		Help:      "Idempotency cache lookups, partitioned by result (hit, miss, expired).",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests processed, partitioned by status code, method and route.",
	}, []string{"code", "method", "route"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler returns the Prometheus exposition handler for the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
