package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/abdul-hamid-achik/courier/packages/future"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

const tracerName = "github.com/abdul-hamid-achik/courier"

// Tracer records a client span per exchange and propagates its context in
// the outgoing headers.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracer uses tp, or the global provider when tp is nil.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:     tp.Tracer(tracerName),
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}
}

// headerCarrier adapts courier.Header to the propagation carrier.
type headerCarrier courier.Header

func (h headerCarrier) Get(key string) string { return courier.Header(h).Get(key) }
func (h headerCarrier) Set(key, value string) { courier.Header(h).Set(key, value) }
func (h headerCarrier) Keys() []string        { return courier.Header(h).Keys() }

// Wrap returns an adapter that traces every exchange made through next.
func (t *Tracer) Wrap(next courier.Adapter) courier.Adapter {
	return func(cfg *courier.Config) *courier.Future {
		fullURL := courier.BuildFullPath(cfg.BaseURL, cfg.URL)
		ctx, span := t.tracer.Start(cfg.Context(), fmt.Sprintf("HTTP %s", cfg.Method),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.request.method", cfg.Method),
				attribute.String("url.full", fullURL),
			),
		)

		traced := cfg.WithContext(ctx)
		traced.Headers = cfg.Headers.Clone()
		if traced.Headers == nil {
			traced.Headers = courier.Header{}
		}
		t.propagator.Inject(ctx, headerCarrier(traced.Headers))

		p := next(traced)
		if p == nil {
			span.SetStatus(codes.Error, "adapter returned no result")
			span.End()
			return nil
		}
		return future.Then(p, func(resp *courier.Response) (*courier.Response, error) {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
			span.End()
			return resp, nil
		}, func(err error) (*courier.Response, error) {
			if e, ok := courier.AsError(err); ok {
				span.SetAttributes(attribute.String("error.type", e.Kind.String()))
				if e.Response != nil {
					span.SetAttributes(attribute.Int("http.response.status_code", e.Response.Status))
				}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, err
		})
	}
}

// Install wraps the client's default adapter.
func (t *Tracer) Install(c *courier.Client) {
	c.Defaults.Adapter = t.Wrap(adapterOf(c))
}
