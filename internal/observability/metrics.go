package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for Mwito.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Chat metrics.
	ChatTurnsTotal   *prometheus.CounterVec
	ChatTurnDuration prometheus.Histogram

	// LLM metrics.
	LLMRequestsTotal *prometheus.CounterVec
	LLMTokensUsed    *prometheus.CounterVec

	// Credential metrics.
	CredentialFailuresTotal *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics
// registered on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ChatTurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwito",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns processed.",
		}, []string{"status"}),

		ChatTurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mwito",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Chat turn duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwito",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total LLM API requests.",
		}, []string{"provider", "status"}),

		LLMTokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwito",
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total LLM tokens consumed.",
		}, []string{"provider", "direction"}),

		CredentialFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwito",
			Subsystem: "aws",
			Name:      "credential_failures_total",
			Help:      "Deferred credential fetches that failed at first use.",
		}, []string{"strategy"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwito",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mwito",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mwito",
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "In-flight HTTP requests.",
		}),
	}

	reg.MustRegister(
		m.ChatTurnsTotal,
		m.ChatTurnDuration,
		m.LLMRequestsTotal,
		m.LLMTokensUsed,
		m.CredentialFailuresTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
