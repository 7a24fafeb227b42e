package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	b := NewConstant(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 50*time.Millisecond, b.Next(i))
	}
}

func TestExponential(t *testing.T) {
	b := &Exponential{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}

	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, b.Next(tt.retry), "retry %d", tt.retry)
	}
}

func TestExponential_Jitter(t *testing.T) {
	b := NewExponential()
	for i := 0; i < 20; i++ {
		d := b.Next(2)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}
