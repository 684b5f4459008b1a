package interceptors

import (
	"net/http"

	"github.com/tintoy/kubeclient/pkg/kube"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingRole is the role of the Tracing interceptor.
const TracingRole = "tracing"

const tracerName = "github.com/tintoy/kubeclient/pkg/kube/interceptors"

type tracingInterceptor struct {
	kube.Delegate

	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Tracing returns a factory for an interceptor that wraps every request in a
// client span and injects W3C trace context headers. A nil provider uses the
// global tracer provider.
func Tracing(provider trace.TracerProvider) kube.InterceptorFactory {
	return func() (kube.Interceptor, error) {
		tracerProvider := provider
		if tracerProvider == nil {
			tracerProvider = otel.GetTracerProvider()
		}

		return &tracingInterceptor{
			tracer: tracerProvider.Tracer(tracerName),
			propagator: propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			),
		}, nil
	}
}

func (i *tracingInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := i.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", sanitizeURL(req.URL)),
			attribute.String("server.address", req.URL.Hostname()),
		),
	)
	defer span.End()

	outgoing := req.Clone(ctx)
	i.propagator.Inject(ctx, propagation.HeaderCarrier(outgoing.Header))

	resp, err := i.RoundTripNext(outgoing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return resp, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	return resp, nil
}
