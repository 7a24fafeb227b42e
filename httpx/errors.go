package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rhesis-ai/rhesis-backend/httpx/policy"
)

var (
	ErrTimeout            = policy.ErrTimeout
	ErrMaxRetriesExceeded = policy.ErrMaxRetriesExceeded
)

// RequestError describes a request that produced no usable response
type RequestError struct {
	Err     error
	Request *http.Request

	// Cause is one of invalid_request, timeout, max_retries, canceled or network
	Cause string
}

func (e *RequestError) Error() string {
	if e.Request != nil {
		return fmt.Sprintf("httpx: %s %s failed: %s (cause: %s)", e.Request.Method, e.Request.URL.Redacted(), e.Err, e.Cause)
	}
	return fmt.Sprintf("httpx: request failed: %s (cause: %s)", e.Err, e.Cause)
}

// Unwrap returns the underlying error, so errors.Is matches ErrTimeout and
// ErrMaxRetriesExceeded
func (e *RequestError) Unwrap() error {
	return e.Err
}

func causeOf(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMaxRetriesExceeded):
		return "max_retries"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "network"
	}
}
