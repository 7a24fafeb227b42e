package observability

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"http://api.rhesis.ai:80/x", "api.rhesis.ai"},
		{"https://api.rhesis.ai:443", "api.rhesis.ai"},
		{"https://api.rhesis.ai:80", "api.rhesis.ai:80"},
		{"http://localhost:8080", "localhost:8080"},
		{"http://localhost", "localhost"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		assert.NoError(t, err)
		assert.Equal(t, tt.expected, NormalizeHost(u), tt.raw)
	}
	assert.Empty(t, NormalizeHost(nil))
}

func TestStatusCodeToReason(t *testing.T) {
	assert.Equal(t, "429", StatusCodeToReason(429))
	assert.Equal(t, "5xx", StatusCodeToReason(503))
	assert.Equal(t, "other", StatusCodeToReason(409))
}
