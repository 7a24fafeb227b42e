package policy

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrTimeout is returned when the request deadline set by TimeoutPolicy expires
	ErrTimeout = errors.New("request timeout")

	// ErrMaxRetriesExceeded is returned when every attempt failed
	ErrMaxRetriesExceeded = errors.New("max retry attempts exceeded")
)

// Executor runs a request: the next policy in the chain or the transport
type Executor func(ctx context.Context, req *http.Request) (*http.Response, error)

// Policy wraps the execution of the next step in the chain. It may call
// next several times, short-circuit, or observe the outcome.
type Policy interface {
	Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error)
}

// Chain builds an executor where policies[0] is outermost and final runs last
func Chain(policies []Policy, final Executor) Executor {
	executor := final
	for i := len(policies) - 1; i >= 0; i-- {
		policy, next := policies[i], executor
		executor = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return policy.Execute(ctx, req, next)
		}
	}
	return executor
}

type ctxKey int

const (
	retryableKey ctxKey = iota
	timeoutKey
)

// WithRetryable forces retries on or off for requests executed with ctx,
// overriding the method-based default of RetryPolicy
func WithRetryable(ctx context.Context, retryable bool) context.Context {
	return context.WithValue(ctx, retryableKey, retryable)
}

func retryableFrom(ctx context.Context) (bool, bool) {
	v, ok := ctx.Value(retryableKey).(bool)
	return v, ok
}

// WithTimeout overrides the TimeoutPolicy deadline for requests executed
// with ctx. A zero duration disables it.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey, d)
}

func timeoutFrom(ctx context.Context) (time.Duration, bool) {
	v, ok := ctx.Value(timeoutKey).(time.Duration)
	return v, ok
}
