package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestTraced(t *testing.T) {
	recorder := withRecorder(t)

	got, err := Traced(context.Background(), "picking.scan", RouteAttributes("r-1"), func(ctx context.Context) (int, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	conflict := errors.New("over scan")
	_, err = Traced(context.Background(), "packing.scan", SessionAttributes("ps-1"), func(ctx context.Context) (int, error) {
		return 0, conflict
	})
	assert.ErrorIs(t, err, conflict)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "picking.scan", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("wms.route.id", "r-1"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
}

func TestInitializeDisabled(t *testing.T) {
	config := DefaultConfig("fulfillment-service")
	config.Enabled = false

	tp, err := Initialize(context.Background(), config)
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	// propagation is installed even without an exporter
	recorder := withRecorder(t)
	_, _ = Traced(context.Background(), "route.create", nil, func(ctx context.Context) (struct{}, error) {
		header := http.Header{}
		InjectHTTPHeaders(ctx, header)
		assert.NotEmpty(t, header.Get("traceparent"))
		return struct{}{}, nil
	})
	assert.Len(t, recorder.Ended(), 1)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("wms.shelf.id", "sh-1"),
		attribute.String("wms.product.id", "p-1"),
	}, StockAttributes("sh-1", "p-1"))
	assert.Len(t, TransferAttributes("a", "b", "p"), 3)
}
