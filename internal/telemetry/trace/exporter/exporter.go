package exporter

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// New returns the span exporter named by kind: none, jaeger or otlp.
// "none" yields a nil exporter.
func New(ctx context.Context, kind, endpoint string) (sdktrace.SpanExporter, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "jaeger":
		exp, err := NewJaeger(endpoint)
		if err != nil {
			return nil, err
		}
		return exp, nil
	case "otlp":
		exp, err := NewOTLP(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", kind)
	}
}
