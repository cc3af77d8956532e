// Package metrics exposes client-side counters for API traffic and scan
// polling in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes recorded by ObservePoll.
const (
	PollPending  = "pending"
	PollComplete = "complete"
	PollFailed   = "failed"
	PollError    = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiDuration  *prometheus.HistogramVec
	tokenRefresh *prometheus.CounterVec
	pollFetches  *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixure_api_requests_total",
			Help: "Requests sent to the scan API",
		},
		[]string{"method", "code"},
	)
	m.apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixure_api_request_duration_seconds",
			Help:    "Scan API request latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method"},
	)
	m.tokenRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixure_token_refresh_total",
			Help: "Access token refresh attempts",
		},
		[]string{"result"},
	)
	m.pollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixure_poll_fetches_total",
			Help: "Scan status fetches issued by the poller",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(m.apiRequests, m.apiDuration, m.tokenRefresh, m.pollFetches)
	return m
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveRequest records one API round trip. code 0 means a transport error.
func (m *Metrics) ObserveRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.apiDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.tokenRefresh.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePoll(outcome string) {
	if m == nil {
		return
	}
	m.pollFetches.WithLabelValues(outcome).Inc()
}

// PollCounter returns the fetch counter for one poll outcome.
func (m *Metrics) PollCounter(outcome string) prometheus.Counter {
	return m.pollFetches.WithLabelValues(outcome)
}
