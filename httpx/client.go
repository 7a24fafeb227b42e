package httpx

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/rhesis-ai/rhesis-backend/httpx/policy"
)

// Client runs requests through its policy chain. It is safe for concurrent
// use and immutable once built.
type Client struct {
	transport Transport
	baseURL   string
	headers   Headers

	tracing  *policy.InstrumentationPolicy
	metrics  *policy.MetricsPolicy
	timeout  *policy.TimeoutPolicy
	retry    *policy.RetryPolicy
	policies []policy.Policy

	executor policy.Executor
}

// NewClient builds a client. The chain runs tracing, metrics, timeout and
// retry in that order around the transport, followed by any WithPolicy
// policies.
//
//	client := httpx.NewClient(
//	    httpx.WithBaseURL("http://rhesisd:8080"),
//	    httpx.WithRetry(policy.RetryConfig{MaxAttempts: 3}),
//	)
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		transport: NewDefaultTransport(),
		headers:   Headers{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	var chain []policy.Policy
	if c.tracing != nil {
		chain = append(chain, c.tracing)
	}
	if c.metrics != nil {
		chain = append(chain, c.metrics)
	}
	if c.timeout != nil {
		chain = append(chain, c.timeout)
	}
	if c.retry != nil {
		chain = append(chain, c.retry)
	}
	chain = append(chain, c.policies...)
	c.executor = policy.Chain(chain, c.transport.Do)
	return c
}

// BaseURL is the prefix of every request path
func (c *Client) BaseURL() string { return c.baseURL }

// Do executes req. A non-2xx response is not an error; failures to obtain
// a response are returned as *RequestError.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	ctx = req.apply(ctx)

	httpReq, err := req.toHTTPRequest(ctx, c.baseURL, c.headers)
	if err != nil {
		return nil, &RequestError{Err: err, Cause: "invalid_request"}
	}

	resp, err := c.executor(ctx, httpReq)
	if err != nil {
		return nil, &RequestError{Err: err, Request: httpReq, Cause: causeOf(err)}
	}
	return resp, nil
}

// Get sends a GET request to path
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Options: opts})
}

// Post sends body to path with the given headers
func (c *Client) Post(ctx context.Context, path string, headers Headers, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Headers: headers, Body: body, Options: opts})
}

// Put sends body to path with the given headers
func (c *Client) Put(ctx context.Context, path string, headers Headers, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Headers: headers, Body: body, Options: opts})
}

// Delete sends a DELETE request to path
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Options: opts})
}
