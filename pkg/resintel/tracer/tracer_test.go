package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartAndRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "search.Sweep", attribute.Int("docs", 40))
	RecordError(span, nil)
	span.End()

	_, failed := Start(context.Background(), "refine.Refine")
	RecordError(failed, errors.New("cache miss"))
	failed.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "search.Sweep", spans[0].Name())
	assert.Equal(t, Name, spans[0].InstrumentationScope().Name)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("docs", 40))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "cache miss", spans[1].Status().Description)
	assert.Len(t, spans[1].Events(), 1)
}

func TestSetupWithoutExport(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	p, err := Setup(context.Background(), Config{ServiceName: "resintel-test", Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))

	var none *Provider
	assert.NoError(t, none.Shutdown(context.Background()))
}
