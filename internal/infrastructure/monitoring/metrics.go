package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// several servers (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Desktop metrics
	WindowsOpen prometheus.Gauge
	WindowOps   *prometheus.CounterVec
	Desktops    prometheus.Gauge

	// Chat metrics
	ChatStreams  *prometheus.CounterVec
	ChatDeltas   prometheus.Counter
	ChatDuration prometheus.Histogram

	// Auth metrics
	AuthLookups *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		WindowsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mdc_windows_open",
				Help: "Number of windows currently in all desktop registries",
			},
		),
		WindowOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdc_window_ops_total",
				Help: "Window registry mutations by kind",
			},
			[]string{"op"},
		),
		Desktops: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mdc_desktops",
				Help: "Number of live user desktops",
			},
		),

		ChatStreams: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdc_chat_streams_total",
				Help: "Assistant requests by outcome",
			},
			[]string{"result"},
		),
		ChatDeltas: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mdc_chat_deltas_total",
				Help: "Assistant text deltas decoded from upstream streams",
			},
		),
		ChatDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mdc_chat_stream_duration_seconds",
				Help:    "Assistant stream duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		AuthLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdc_auth_lookups_total",
				Help: "Identity lookups against the auth backend",
			},
			[]string{"result"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mdc_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdc_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWindowOp counts a window registry mutation
func (m *Metrics) RecordWindowOp(op string) {
	m.WindowOps.WithLabelValues(op).Inc()
}

// AddWindows adjusts the open window gauge
func (m *Metrics) AddWindows(delta int) {
	m.WindowsOpen.Add(float64(delta))
}

// SetDesktops sets the number of live desktops
func (m *Metrics) SetDesktops(count int) {
	m.Desktops.Set(float64(count))
}

// RecordChatStream records the outcome of one assistant request
func (m *Metrics) RecordChatStream(result string, duration time.Duration) {
	m.ChatStreams.WithLabelValues(result).Inc()
	m.ChatDuration.Observe(duration.Seconds())
}

// IncChatDeltas counts one decoded delta
func (m *Metrics) IncChatDeltas() {
	m.ChatDeltas.Inc()
}

// RecordAuthLookup records an identity lookup outcome
func (m *Metrics) RecordAuthLookup(result string) {
	m.AuthLookups.WithLabelValues(result).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
