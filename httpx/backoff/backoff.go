package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before retry attempt n (0-indexed)
type Backoff interface {
	Next(retry int) time.Duration
}

// Constant waits Interval between every attempt
type Constant struct {
	Interval time.Duration
}

func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Next(int) time.Duration { return c.Interval }

// Exponential waits Initial * Factor^retry, capped at Max. With Jitter the
// delay is drawn uniformly from [0, delay].
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  bool
}

// NewExponential returns 100ms doubling up to 5s, with jitter
func NewExponential() *Exponential {
	return &Exponential{
		Initial: 100 * time.Millisecond,
		Max:     5 * time.Second,
		Factor:  2,
		Jitter:  true,
	}
}

func (e *Exponential) Next(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	factor := e.Factor
	if factor == 0 {
		factor = 2
	}

	delay := float64(e.Initial) * math.Pow(factor, float64(retry))
	if e.Max > 0 && delay > float64(e.Max) {
		delay = float64(e.Max)
	}
	if e.Jitter {
		delay *= rand.Float64()
	}
	return time.Duration(delay)
}
