package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole request, retries included
const DefaultTimeout = 30 * time.Second

// TimeoutConfig configures TimeoutPolicy
type TimeoutConfig struct {
	// Request is the deadline of the request including every retry.
	// Dial and TLS timeouts belong to the transport.
	Request time.Duration
}

// TimeoutPolicy puts a deadline on the rest of the chain
type TimeoutPolicy struct {
	config TimeoutConfig
}

// NewTimeoutPolicy creates the policy. A zero Request timeout falls back
// to DefaultTimeout.
func NewTimeoutPolicy(config TimeoutConfig) *TimeoutPolicy {
	if config.Request == 0 {
		config.Request = DefaultTimeout
	}
	return &TimeoutPolicy{config: config}
}

// Execute implements Policy. A per-request timeout set with WithTimeout
// wins over the configured one. When the deadline fires the error is
// ErrTimeout; cancellation of the caller's context is returned as is. The
// deadline stays armed until the response body is closed.
func (t *TimeoutPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	d := t.config.Request
	if override, ok := timeoutFrom(ctx); ok {
		d = override
	}
	if d <= 0 {
		return next(ctx, req)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	resp, err := next(timeoutCtx, req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return nil, err
	}

	if resp.Body == nil {
		cancel()
		return resp, nil
	}
	// the body is read after Execute returns, so the deadline is released
	// when the caller closes it
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
