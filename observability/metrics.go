package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector holds all Prometheus metrics of the providers.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Request metrics. Mode is "complete" or "stream".
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec

	// Stream metrics.
	TimeToFirstItem *prometheus.HistogramVec
	StreamItems     *prometheus.CounterVec
	ActiveStreams   prometheus.Gauge

	TokensUsed *prometheus.CounterVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total LLM requests.",
		}, []string{"provider", "model", "mode", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmstream",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM request duration in seconds, until the stream ends.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider", "model", "mode"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total LLM errors by kind.",
		}, []string{"provider", "kind"}),

		TimeToFirstItem: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmstream",
			Subsystem: "stream",
			Name:      "time_to_first_item_seconds",
			Help:      "Time from request to the first streamed item in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider", "model"}),

		StreamItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Subsystem: "stream",
			Name:      "items_total",
			Help:      "Total streamed items delivered to consumers.",
		}, []string{"provider", "type"}),

		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llmstream",
			Name:      "active_streams",
			Help:      "Number of streams not yet ended.",
		}),

		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmstream",
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total LLM tokens consumed.",
		}, []string{"provider", "model", "direction"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ErrorsTotal,
		m.TimeToFirstItem,
		m.StreamItems,
		m.ActiveStreams,
		m.TokensUsed,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
