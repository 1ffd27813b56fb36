package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"waveconv/internal/telemetry/trace/exporter"
)

// CloseFunc flushes and stops a provider.
type CloseFunc func(ctx context.Context) error

// TraceProviderBuilder -.
type TraceProviderBuilder struct {
	name     string
	exporter sdktrace.SpanExporter
}

func NewTraceProviderBuilder(name string) *TraceProviderBuilder {
	return &TraceProviderBuilder{name: name}
}

// SetExporter sets the span exporter. A nil exporter records spans without
// shipping them anywhere.
func (b *TraceProviderBuilder) SetExporter(exp sdktrace.SpanExporter) *TraceProviderBuilder {
	b.exporter = exp
	return b
}

func (b *TraceProviderBuilder) Build() (*sdktrace.TracerProvider, CloseFunc, error) {
	res := resource.NewSchemaless(attribute.String("service.name", b.name))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if b.exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(b.exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	return tp, tp.Shutdown, nil
}

// InitGlobal builds a provider exporting to kind (none, jaeger or otlp) and
// installs it as the global tracer provider.
func InitGlobal(ctx context.Context, name, kind, endpoint string) (CloseFunc, error) {
	spanExporter, err := exporter.New(ctx, kind, endpoint)
	if err != nil {
		return nil, err
	}

	tracerProvider, closeFn, err := NewTraceProviderBuilder(name).
		SetExporter(spanExporter).
		Build()
	if err != nil {
		return nil, err
	}

	// set global propagator to tracecontext (the default is no-op).
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tracerProvider)

	return closeFn, nil
}
