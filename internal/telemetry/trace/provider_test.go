package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestBuild_WithExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tp, closeFn, err := NewTraceProviderBuilder("waveconv-test").SetExporter(exp).Build()
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "convert")
	span.End()

	require.NoError(t, closeFn(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "convert", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", "waveconv-test"))
}

func TestBuild_WithoutExporter(t *testing.T) {
	tp, closeFn, err := NewTraceProviderBuilder("waveconv-test").Build()
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()

	assert.NoError(t, closeFn(context.Background()))
}

func TestInitGlobal_None(t *testing.T) {
	closeFn, err := InitGlobal(context.Background(), "waveconv-test", "none", "")
	require.NoError(t, err)
	assert.NoError(t, closeFn(context.Background()))
}

func TestInitGlobal_UnknownExporter(t *testing.T) {
	_, err := InitGlobal(context.Background(), "waveconv-test", "zipkin", "")
	assert.Error(t, err)
}
