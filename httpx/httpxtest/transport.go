package httpxtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
)

// MockTransport implements httpx.Transport and records every request.
// Func takes precedence over Responses, which take precedence over Err
// and Response.
type MockTransport struct {
	mu sync.Mutex

	Response *http.Response
	Err      error
	Func     func(ctx context.Context, req *http.Request) (*http.Response, error)

	// Responses are returned one per call; the last one repeats
	Responses []*http.Response

	Requests  []*http.Request
	Bodies    []string
	CallCount int
}

func (m *MockTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		req.Body = io.NopCloser(bytes.NewReader(b))
	}
	m.CallCount++
	m.Requests = append(m.Requests, req)
	m.Bodies = append(m.Bodies, body)

	switch {
	case m.Func != nil:
		return m.Func(ctx, req)
	case len(m.Responses) > 0:
		i := min(m.CallCount, len(m.Responses)) - 1
		return m.Responses[i], nil
	case m.Err != nil:
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests, m.Bodies, m.CallCount = nil, nil, 0
}

// LastRequest returns the most recent request, or nil
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

// LastBody returns the body of the most recent request
func (m *MockTransport) LastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Bodies) == 0 {
		return ""
	}
	return m.Bodies[len(m.Bodies)-1]
}

// JSONResponse builds a response with a JSON body
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
