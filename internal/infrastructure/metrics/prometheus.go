// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "footage"

var (
	// RenditionsTotal tracks per-quality rendition outcomes.
	// Labels:
	//   - quality: 240p, 360p, 480p, 720p, 1080p
	//   - result: success, failure
	RenditionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renditions_total",
			Help:      "Total number of rendition attempts by quality and result",
		},
		[]string{"quality", "result"},
	)

	// EncodeDurationSeconds observes wall time of one rendition encode.
	EncodeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Duration of a single rendition encode",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"quality"},
	)

	// DispatchTotal tracks remote job hand-offs.
	// Labels:
	//   - transport: rabbitmq, asynq
	//   - result: success, error
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of remote job dispatch attempts",
		},
		[]string{"transport", "result"},
	)

	// StrategyFallbacksTotal counts runs moved to the local worker after a
	// failed remote dispatch.
	StrategyFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_fallbacks_total",
			Help:      "Total number of remote dispatch failures that fell back to local processing",
		},
	)

	// ProgressWriteFailuresTotal counts swallowed progress store errors.
	ProgressWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_write_failures_total",
			Help:      "Total number of failed progress writes",
		},
	)

	// WebhookRequestsTotal tracks inbound completion callbacks.
	// Labels:
	//   - result: ok, unauthorized, bad_request, not_found, error
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Total number of rendition webhook requests",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal tracks served requests.
	// Labels:
	//   - method: GET, POST
	//   - status: HTTP status code class (2xx, 4xx, 5xx)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Result label constants.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Webhook result constants.
const (
	WebhookOK           = "ok"
	WebhookUnauthorized = "unauthorized"
	WebhookBadRequest   = "bad_request"
	WebhookNotFound     = "not_found"
	WebhookError        = "error"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// StatusClass maps an HTTP status code to its class label.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// RegisterPoolGauges exposes connection pool statistics through stats.
func RegisterPoolGauges(reg prometheus.Registerer, stats func() (acquired, idle, total int32)) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "acquired_conns",
		Help:      "Connections currently acquired from the pool",
	}, func() float64 {
		a, _, _ := stats()
		return float64(a)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "idle_conns",
		Help:      "Idle connections in the pool",
	}, func() float64 {
		_, i, _ := stats()
		return float64(i)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "total_conns",
		Help:      "Total connections in the pool",
	}, func() float64 {
		_, _, t := stats()
		return float64(t)
	})
}
