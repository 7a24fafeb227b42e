package httpx

import (
	"context"
	"net/http"
	"time"
)

// Transport executes a single HTTP request. It is the last step of the
// policy chain and the seam tests replace with httpxtest.MockTransport.
type Transport interface {
	// Do sends req and returns the response. ctx governs cancellation and
	// deadlines; the request's own context is ignored.
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// DefaultTransport sends requests through a standard http.Client
type DefaultTransport struct {
	client *http.Client
}

// NewDefaultTransport creates a transport whose client:
//   - honours HTTP_PROXY / HTTPS_PROXY / NO_PROXY
//   - keeps up to 100 idle connections, 10 per host
//   - closes idle connections after 90 seconds
func NewDefaultTransport() *DefaultTransport {
	return &DefaultTransport{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewDefaultTransportWithClient creates a transport over client, for callers
// that need their own TLS, proxy or pooling settings.
func NewDefaultTransportWithClient(client *http.Client) *DefaultTransport {
	return &DefaultTransport{client: client}
}

// Do implements Transport, binding ctx to the request before sending it.
func (t *DefaultTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return t.client.Do(req.WithContext(ctx))
}
