// Package metrics holds the Prometheus collectors exported on /metrics.
//
// All methods are nil-safe so that components can run without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tggate"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultCached  = "cached"
	ResultReused  = "reused"
	ResultPaired  = "paired"
)

// Metrics is the process-wide collector set.
type Metrics struct {
	registry *prometheus.Registry

	acquisitions  *prometheus.CounterVec
	handshakes    *prometheus.CounterVec
	challenges    prometheus.Counter
	sends         *prometheus.CounterVec
	authenticated prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_acquisitions_total",
			Help:      "Session gate acquisitions by outcome (cached, reused, paired, error).",
		}, []string{"result"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_handshakes_total",
			Help:      "Completed pairing handshakes by result.",
		}, []string{"result"}),
		challenges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairing_challenges_total",
			Help:      "Pairing challenges (QR codes) issued, renewals included.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Send operations by result.",
		}, []string{"result"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_authenticated",
			Help:      "1 when the gate holds an authenticated client.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.acquisitions,
		m.handshakes,
		m.challenges,
		m.sends,
		m.authenticated,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Acquisition counts one gate acquisition.
func (m *Metrics) Acquisition(result string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(result).Inc()
}

// Handshake counts one finished pairing handshake.
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

// Challenge counts one issued pairing challenge.
func (m *Metrics) Challenge() {
	if m == nil {
		return
	}
	m.challenges.Inc()
}

// Send counts one send operation.
func (m *Metrics) Send(result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(result).Inc()
}

// SetAuthenticated flips the authenticated gauge.
func (m *Metrics) SetAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.authenticated.Set(1)
		return
	}
	m.authenticated.Set(0)
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
