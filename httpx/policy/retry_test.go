package policy_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhesis-ai/rhesis-backend/httpx/backoff"
	"github.com/rhesis-ai/rhesis-backend/httpx/observability"
	"github.com/rhesis-ai/rhesis-backend/httpx/policy"
)

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func newRetry(cfg policy.RetryConfig) *policy.RetryPolicy {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	cfg.Backoff = backoff.NewConstant(time.Millisecond)
	return policy.NewRetryPolicy(cfg)
}

func TestRetryPolicy_SuccessOnFirstAttempt(t *testing.T) {
	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return response(http.StatusOK), nil
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := newRetry(policy.RetryConfig{}).Execute(context.Background(), req, executor)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_RetriesOnError(t *testing.T) {
	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("network error")
		}
		return response(http.StatusOK), nil
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := newRetry(policy.RetryConfig{}).Execute(context.Background(), req, executor)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_ReplaysBody(t *testing.T) {
	var bodies []string
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			return response(http.StatusBadGateway), nil
		}
		return response(http.StatusOK), nil
	}

	req, _ := http.NewRequest(http.MethodPut, "http://example.com", bytes.NewBufferString(`{"ids":["a"]}`))
	_, err := newRetry(policy.RetryConfig{}).Execute(context.Background(), req, executor)

	require.NoError(t, err)
	assert.Equal(t, []string{`{"ids":["a"]}`, `{"ids":["a"]}`}, bodies)
}

func TestRetryPolicy_ExhaustsRetries(t *testing.T) {
	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return nil, errors.New("persistent error")
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	_, err := newRetry(policy.RetryConfig{}).Execute(context.Background(), req, executor)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, policy.ErrMaxRetriesExceeded)
	assert.Contains(t, err.Error(), "attempt 3: persistent error")
}

func TestRetryPolicy_ReturnsLastStatus(t *testing.T) {
	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return response(http.StatusServiceUnavailable), nil
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := newRetry(policy.RetryConfig{MaxAttempts: 2}).Execute(context.Background(), req, executor)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicy_Idempotency(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		ctx      func(context.Context) context.Context
		expected int
	}{
		{"post not retried", http.MethodPost, nil, 1},
		{"post opted in", http.MethodPost, func(ctx context.Context) context.Context { return policy.WithRetryable(ctx, true) }, 3},
		{"get retried", http.MethodGet, nil, 3},
		{"get opted out", http.MethodGet, func(ctx context.Context) context.Context { return policy.WithRetryable(ctx, false) }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
				attempts++
				return nil, errors.New("error")
			}

			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx(ctx)
			}
			req, _ := http.NewRequest(tt.method, "http://example.com", nil)
			_, err := newRetry(policy.RetryConfig{OnlyIdempotent: true}).Execute(ctx, req, executor)

			require.Error(t, err)
			assert.Equal(t, tt.expected, attempts)
		})
	}
}

func TestRetryPolicy_Metrics(t *testing.T) {
	collector := observability.NewMetricsCollector(prometheus.NewRegistry())
	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("reset")
		}
		if attempts == 2 {
			return response(http.StatusTooManyRequests), nil
		}
		return response(http.StatusOK), nil
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com:80/x", nil)
	_, err := newRetry(policy.RetryConfig{Metrics: collector}).Execute(context.Background(), req, executor)
	require.NoError(t, err)

	mp := policy.NewMetricsPolicy(collector)
	_, err = mp.Execute(context.Background(), req, executor)
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(collector.RequestDurations()))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.Retries()))
}

func TestTimeoutPolicy(t *testing.T) {
	slow := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return response(http.StatusOK), nil
		}
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	tp := policy.NewTimeoutPolicy(policy.TimeoutConfig{Request: 10 * time.Millisecond})

	_, err := tp.Execute(context.Background(), req, slow)
	assert.ErrorIs(t, err, policy.ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tp.Execute(ctx, req, slow)
	assert.ErrorIs(t, err, context.Canceled)

	fast := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return response(http.StatusOK), nil
	}
	resp, err := tp.Execute(policy.WithTimeout(context.Background(), time.Second), req, fast)
	require.NoError(t, err)
	assert.NoError(t, resp.Body.Close())
}

type recorder struct {
	name  string
	trace *[]string
}

func (r recorder) Execute(ctx context.Context, req *http.Request, next policy.Executor) (*http.Response, error) {
	*r.trace = append(*r.trace, r.name)
	return next(ctx, req)
}

func TestChain_Order(t *testing.T) {
	var trace []string
	exec := policy.Chain([]policy.Policy{recorder{"outer", &trace}, recorder{"inner", &trace}},
		func(ctx context.Context, req *http.Request) (*http.Response, error) {
			trace = append(trace, "transport")
			return response(http.StatusOK), nil
		})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	_, err := exec(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "transport"}, trace)
}
