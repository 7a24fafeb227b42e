package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/rhesis-ai/rhesis-backend/httpx/observability"
)

// MetricsPolicy records Prometheus metrics for every request: its duration
// by method, host and status, and the number of requests in flight per host.
// Retry attempts are counted by RetryPolicy on the same collector.
type MetricsPolicy struct {
	collector *observability.MetricsCollector
}

// NewMetricsPolicy creates the policy over collector, whose metrics are
// already registered.
func NewMetricsPolicy(collector *observability.MetricsCollector) *MetricsPolicy {
	return &MetricsPolicy{collector: collector}
}

// Execute implements Policy. Transport failures are recorded with status 0.
func (m *MetricsPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	host := observability.NormalizeHost(req.URL)
	m.collector.IncrementActiveRequests(host)
	defer m.collector.DecrementActiveRequests(host)

	start := time.Now()
	resp, err := next(ctx, req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	m.collector.RecordRequestDuration(req.Method, host, status, time.Since(start))
	return resp, err
}
