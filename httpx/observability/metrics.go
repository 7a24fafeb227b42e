package observability

import (
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector records client side request metrics
type MetricsCollector struct {
	requestDuration *prometheus.HistogramVec
	retryAttempts   *prometheus.CounterVec
	activeRequests  *prometheus.GaugeVec
}

// NewMetricsCollector registers the client metrics on registry, or on the
// default registerer when registry is nil.
func NewMetricsCollector(registry prometheus.Registerer) *MetricsCollector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &MetricsCollector{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_client_request_duration_seconds",
				Help:    "HTTP client request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "status_code", "host"},
		),
		retryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_retries_total",
				Help: "Total number of retried HTTP client attempts",
			},
			[]string{"method", "host", "reason"},
		),
		activeRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_client_active_requests",
				Help: "Number of in-flight HTTP client requests",
			},
			[]string{"host"},
		),
	}
}

// RecordRequestDuration observes a finished request. statusCode is 0 when
// no response was received.
func (m *MetricsCollector) RecordRequestDuration(method, host string, statusCode int, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(statusCode), host).Observe(duration.Seconds())
}

// IncrementRetryAttempts counts a retry. reason is one of network_error,
// 5xx, 429 or other.
func (m *MetricsCollector) IncrementRetryAttempts(method, host, reason string) {
	m.retryAttempts.WithLabelValues(method, host, reason).Inc()
}

// IncrementActiveRequests marks a request to host as in flight
func (m *MetricsCollector) IncrementActiveRequests(host string) {
	m.activeRequests.WithLabelValues(host).Inc()
}

// DecrementActiveRequests marks a request to host as finished
func (m *MetricsCollector) DecrementActiveRequests(host string) {
	m.activeRequests.WithLabelValues(host).Dec()
}

// NormalizeHost returns the host label of u without the default port of
// its scheme
func NormalizeHost(u *url.URL) string {
	if u == nil {
		return ""
	}
	host, port := u.Hostname(), u.Port()
	switch {
	case port == "",
		port == "80" && u.Scheme == "http",
		port == "443" && u.Scheme == "https":
		return host
	}
	return u.Host
}

// StatusCodeToReason maps a retried status code to its metric reason
func StatusCodeToReason(statusCode int) string {
	switch {
	case statusCode == 429:
		return "429"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}

// RequestDurations exposes the duration histogram, for tests and custom
// gatherers.
func (m *MetricsCollector) RequestDurations() prometheus.Collector { return m.requestDuration }
// Retries exposes the retry attempt counter
func (m *MetricsCollector) Retries() prometheus.Collector          { return m.retryAttempts }
