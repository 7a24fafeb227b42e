package httpx

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhesis-ai/rhesis-backend/httpx/observability"
	"github.com/rhesis-ai/rhesis-backend/httpx/policy"
)

// ClientOption configures a Client at construction
type ClientOption func(*Client)

// WithBaseURL sets the prefix of every request path. A trailing slash is
// trimmed.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTransport replaces the transport, typically with httpxtest.MockTransport
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient sends requests through client instead of the default
// transport
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.transport = NewDefaultTransportWithClient(client)
	}
}

// WithHeader is sent on every request unless the request sets it
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithRetry enables the retry policy
func WithRetry(config policy.RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = policy.NewRetryPolicy(config)
	}
}

// WithRequestTimeout bounds every request, retries included. Requests
// can override it with WithTimeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = policy.NewTimeoutPolicy(policy.TimeoutConfig{Request: d})
	}
}

// WithTracing opens a client span per request. A nil provider uses the
// global one.
func WithTracing(provider trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracing = policy.NewInstrumentationPolicy(provider)
	}
}

// WithMetrics registers the client metrics on registry
func WithMetrics(registry prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.metrics = policy.NewMetricsPolicy(observability.NewMetricsCollector(registry))
	}
}

// WithPolicy appends p inside the built-in policies
func WithPolicy(p policy.Policy) ClientOption {
	return func(c *Client) {
		c.policies = append(c.policies, p)
	}
}
