package policy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/rhesis-ai/rhesis-backend/httpx/backoff"
	"github.com/rhesis-ai/rhesis-backend/httpx/observability"
)

// RetryConfig configures RetryPolicy. Zero values fall back to defaults:
// three attempts, exponential backoff, and retries on transport errors,
// 429 and 5xx.
type RetryConfig struct {
	// MaxAttempts counts the initial request. Default: 3
	MaxAttempts int

	// Backoff between attempts. Default: backoff.NewExponential()
	Backoff backoff.Backoff

	// ShouldRetry replaces the default condition of transport errors and
	// RetryableStatusCodes
	ShouldRetry func(*http.Response, error) bool

	// RetryableStatusCodes default to 429 and 500, 502, 503, 504
	RetryableStatusCodes []int

	// OnlyIdempotent skips retries of POST and PATCH unless the request
	// context opts in with WithRetryable
	OnlyIdempotent bool

	// Metrics counts retried attempts when set
	Metrics *observability.MetricsCollector
}

// RetryPolicy re-executes failed requests with backoff
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates the policy, filling in the defaults of config
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == nil {
		config.Backoff = backoff.NewExponential()
	}
	if config.RetryableStatusCodes == nil {
		config.RetryableStatusCodes = []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	return &RetryPolicy{config: config}
}

func (r *RetryPolicy) enabled(ctx context.Context, method string) bool {
	if v, ok := retryableFrom(ctx); ok {
		return v
	}
	return !r.config.OnlyIdempotent || isIdempotent(method)
}

// Execute runs next up to MaxAttempts times. When the last attempt still
// gets a retryable status, that response is returned as is; when every
// attempt failed in transport, the attempt errors are combined with
// ErrMaxRetriesExceeded.
func (r *RetryPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if !r.enabled(ctx, req.Method) {
		return next(ctx, req)
	}

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
		_ = req.Body.Close()
	}

	var errs error
	for attempt := 0; ; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := next(ctx, req)
		last := attempt == r.config.MaxAttempts-1
		if !r.shouldRetry(resp, err) {
			return resp, err
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", attempt+1, err))
		}
		if last {
			if err != nil {
				return nil, multierr.Append(errs, ErrMaxRetriesExceeded)
			}
			return resp, nil
		}

		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		r.record(ctx, req, resp, err, attempt)

		select {
		case <-time.After(r.config.Backoff.Next(attempt)):
		case <-ctx.Done():
			return nil, multierr.Append(errs, ctx.Err())
		}
	}
}

func (r *RetryPolicy) record(ctx context.Context, req *http.Request, resp *http.Response, err error, attempt int) {
	reason := "network_error"
	if err == nil && resp != nil {
		reason = observability.StatusCodeToReason(resp.StatusCode)
	}
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
		attribute.Int("http.retry_attempt", attempt+1),
		attribute.String("http.retry_reason", reason),
	))
	if r.config.Metrics != nil {
		r.config.Metrics.IncrementRetryAttempts(req.Method, observability.NormalizeHost(req.URL), reason)
	}
}

func (r *RetryPolicy) shouldRetry(resp *http.Response, err error) bool {
	if r.config.ShouldRetry != nil {
		return r.config.ShouldRetry(resp, err)
	}
	if err != nil {
		return true
	}
	return resp != nil && slices.Contains(r.config.RetryableStatusCodes, resp.StatusCode)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
