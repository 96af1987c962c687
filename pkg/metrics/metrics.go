// Package metrics exposes call and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"companion-call-demo/backend/internal/call"
)

const namespace = "companion"

// Metrics holds every collector on its own registry
type Metrics struct {
	registry *prometheus.Registry

	callsStarted  prometheus.Counter
	callsActive   prometheus.Gauge
	callsEnded    *prometheus.CounterVec
	callDuration  prometheus.Histogram
	transcript    *prometheus.CounterVec
	mediaFailures prometheus.Counter
	wsConnections prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpInFlight  prometheus.Gauge
	rateLimited   prometheus.Counter
}

// New creates the collectors and registers them with a fresh registry that
// also carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		callsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Calls that began acquiring media",
		}),
		callsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Calls currently in the active state",
		}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Calls that reached a terminal state",
		}, []string{"state"}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Active duration of finished calls",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		transcript: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Transcript entries appended",
		}, []string{"from"}),
		mediaFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_acquisition_failures_total",
			Help:      "Calls that failed to open local media",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open call websockets",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests being served",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.callsStarted, m.callsActive, m.callsEnded, m.callDuration,
		m.transcript, m.mediaFailures, m.wsConnections,
		m.httpRequests, m.httpInFlight, m.rateLimited,
	)
	return m
}

// Registry returns the registry, e.g. for the otel exporter
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CallStarted() { m.callsStarted.Inc() }

func (m *Metrics) CallActive() { m.callsActive.Inc() }

// CallEnded records a terminal call
func (m *Metrics) CallEnded(state call.State, wasActive bool, active time.Duration) {
	m.callsEnded.WithLabelValues(string(state)).Inc()
	if wasActive {
		m.callsActive.Dec()
		m.callDuration.Observe(active.Seconds())
	}
}

func (m *Metrics) EntryAppended(sender call.Sender) {
	m.transcript.WithLabelValues(string(sender)).Inc()
}

func (m *Metrics) MediaFailure() { m.mediaFailures.Inc() }

// WSOpened and WSClosed track open websockets
func (m *Metrics) WSOpened() { m.wsConnections.Inc() }
func (m *Metrics) WSClosed() { m.wsConnections.Dec() }

// RateLimited counts a rejected request
func (m *Metrics) RateLimited() { m.rateLimited.Inc() }

// Middleware counts HTTP requests. Latency is recorded by the otel
// http.server.duration histogram exported on the same registry.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
