// Package metrics provides Prometheus metrics for the commerce layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for HTTP and checkout activity.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	checkoutsStarted   prometheus.Counter
	checkoutsConfirmed prometheus.Counter
	checkoutsFailed    *prometheus.CounterVec
}

// New creates and registers metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commerce_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"service", "method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commerce_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"service", "method", "path"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commerce_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
		checkoutsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commerce_checkouts_started_total",
			Help: "Total number of checkout sessions started",
		}),
		checkoutsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commerce_checkouts_confirmed_total",
			Help: "Total number of checkout sessions confirmed by the payment SDK",
		}),
		checkoutsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commerce_checkouts_failed_total",
			Help: "Total number of checkout sessions that exited without success",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInFlight,
		m.checkoutsStarted,
		m.checkoutsConfirmed,
		m.checkoutsFailed,
	)
	return m
}

// IncrementInFlight increments the in-flight request gauge.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

// DecrementInFlight decrements the in-flight request gauge.
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordCheckoutStarted counts a checkout session entering the machine.
func (m *Metrics) RecordCheckoutStarted() { m.checkoutsStarted.Inc() }

// RecordCheckoutConfirmed counts a checkout session completed by the SDK.
func (m *Metrics) RecordCheckoutConfirmed() { m.checkoutsConfirmed.Inc() }

// RecordCheckoutFailed counts a checkout that exited without success.
func (m *Metrics) RecordCheckoutFailed(reason string) {
	m.checkoutsFailed.WithLabelValues(reason).Inc()
}
