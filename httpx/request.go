package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rhesis-ai/rhesis-backend/httpx/policy"
)

// Headers is a convenience type for HTTP headers
type Headers map[string]string

// Request is a request relative to the client's base URL
type Request struct {
	Method  string
	Path    string
	Headers Headers
	Body    io.Reader
	Options []RequestOption
}

// RequestOption overrides client policies for one request
type RequestOption func(context.Context) context.Context

// WithTimeout replaces the client timeout for this request. Zero disables it.
func WithTimeout(d time.Duration) RequestOption {
	return func(ctx context.Context) context.Context {
		return policy.WithTimeout(ctx, d)
	}
}

// WithRetryable enables retries of non-idempotent requests, or disables
// retries of idempotent ones
func WithRetryable(retryable bool) RequestOption {
	return func(ctx context.Context) context.Context {
		return policy.WithRetryable(ctx, retryable)
	}
}

// WithoutRetry executes the request once
func WithoutRetry() RequestOption {
	return WithRetryable(false)
}

func (r *Request) apply(ctx context.Context) context.Context {
	for _, opt := range r.Options {
		ctx = opt(ctx)
	}
	return ctx
}

func (r *Request) toHTTPRequest(ctx context.Context, baseURL string, defaults Headers) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, baseURL+r.Path, r.Body)
	if err != nil {
		return nil, err
	}
	for key, value := range defaults {
		req.Header.Set(key, value)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}
