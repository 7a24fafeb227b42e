package lifecycle

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rhesis-ai/rhesis-backend/eventbus"
)

type options struct {
	now        func() time.Time
	publisher  eventbus.Bus
	log        *zap.Logger
	tracer     trace.TracerProvider
	metrics    *Metrics
	validateID func(string) error
}

type Option func(*options)

// WithClock sets the time source for deletion timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithPublisher publishes lifecycle events on bus
func WithPublisher(bus eventbus.Bus) Option {
	return func(o *options) {
		o.publisher = bus
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithTracer sets the tracer provider; the global one is used otherwise
func WithTracer(provider trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = provider
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithIDValidator replaces the UUID check applied to ids
func WithIDValidator(fn func(string) error) Option {
	return func(o *options) {
		o.validateID = fn
	}
}
