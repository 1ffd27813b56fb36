package exporter

import (
	"go.opentelemetry.io/otel/exporters/jaeger"
)

// NewJaeger sends spans to a jaeger collector, e.g. http://jaeger:14268/api/traces.
func NewJaeger(endpoint string) (*jaeger.Exporter, error) {
	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
}
