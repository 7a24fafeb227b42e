package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rhesis-ai/rhesis-backend/httpx"

// OTELInstrumenter opens client spans for outgoing requests and propagates
// their context through the request headers with the global propagator.
type OTELInstrumenter struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewOTELInstrumenter creates an instrumenter tracing with provider. A nil
// provider falls back to otel.GetTracerProvider, so spans are no-ops until
// the application installs a real one.
func NewOTELInstrumenter(provider trace.TracerProvider) *OTELInstrumenter {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &OTELInstrumenter{
		tracer:     provider.Tracer(instrumentationName),
		propagator: otel.GetTextMapPropagator(),
	}
}

// StartSpan opens a client span named after the request method and injects
// its context into the request headers. The span carries method, scheme,
// normalized host and path, plus the X-Request-ID header when present.
func (o *OTELInstrumenter) StartSpan(ctx context.Context, req *http.Request) (context.Context, trace.Span) {
	ctx, span := o.tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.scheme", req.URL.Scheme),
			attribute.String("http.host", NormalizeHost(req.URL)),
			attribute.String("http.target", req.URL.Path),
		),
	)
	if id := req.Header.Get("X-Request-ID"); id != "" {
		span.SetAttributes(attribute.String("http.request_id", id))
	}

	o.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
	return ctx, span
}

// EndSpan records the outcome of a request on span: the error when the
// request failed, the status code otherwise, with an error status from 400
// up. It does not end the span; the caller does.
func (o *OTELInstrumenter) EndSpan(span trace.Span, resp *http.Response, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp != nil:
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
