package policy

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/rhesis-ai/rhesis-backend/httpx/observability"
)

// InstrumentationPolicy traces every request with an OpenTelemetry client
// span. The span context is injected into the outgoing headers so the
// server side can continue the trace, and retry attempts made further down
// the chain are recorded as events on the same span.
type InstrumentationPolicy struct {
	instrumenter *observability.OTELInstrumenter
}

// NewInstrumentationPolicy creates the policy. A nil provider falls back to
// the global tracer provider.
func NewInstrumentationPolicy(provider trace.TracerProvider) *InstrumentationPolicy {
	return &InstrumentationPolicy{
		instrumenter: observability.NewOTELInstrumenter(provider),
	}
}

// Execute implements Policy. The span covers the rest of the chain,
// retries and timeouts included, and carries the final status code or error.
func (i *InstrumentationPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	ctx, span := i.instrumenter.StartSpan(ctx, req)
	defer span.End()

	resp, err := next(ctx, req)
	i.instrumenter.EndSpan(span, resp, err)
	return resp, err
}
