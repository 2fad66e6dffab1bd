// Package tracing sets up OpenTelemetry export and names the span attributes
// the fulfillment service puts on ledger, picking and packing operations.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "github.com/wms-platform/fulfillment-service"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
	Enabled        bool
}

func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		Enabled:        true,
	}
}

// TracerProvider owns the SDK provider so main can flush it on shutdown
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// Initialize installs the global provider and the W3C propagators. With
// tracing disabled the global no-op provider stays in place and Shutdown
// does nothing.
func Initialize(ctx context.Context, config *Config) (*TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !config.Enabled {
		return &TracerProvider{}, nil
	}

	conn, err := grpc.NewClient(config.OTLPEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("otlp connection to %s: %w", config.OTLPEndpoint, err)
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithGRPCConn(conn)))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(config.ServiceName),
		semconv.ServiceVersionKey.String(config.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(config.Environment),
		semconv.ServiceNamespaceKey.String("wms"),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(config.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes buffered spans
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Traced runs operation in an internal span named spanName. A failing
// operation marks the span as errored with the error recorded on it.
func Traced[T any](ctx context.Context, spanName string, attrs []attribute.KeyValue, operation func(context.Context) (T, error)) (T, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, spanName, trace.WithAttributes(attrs...))
	defer span.End()

	result, err := operation(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, spanName+" failed")
	}
	return result, err
}

// InjectHTTPHeaders propagates the current trace to a collaborator call
func InjectHTTPHeaders(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

func RouteAttributes(routeID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("wms.route.id", routeID)}
}

func SessionAttributes(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("wms.packing_session.id", sessionID)}
}

func ShelfAttributes(shelfID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("wms.shelf.id", shelfID)}
}

// StockAttributes identifies one stock position (shelf, product)
func StockAttributes(shelfID, productID string) []attribute.KeyValue {
	return append(ShelfAttributes(shelfID), attribute.String("wms.product.id", productID))
}

func TransferAttributes(fromShelfID, toShelfID, productID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("wms.transfer.from_shelf_id", fromShelfID),
		attribute.String("wms.transfer.to_shelf_id", toShelfID),
		attribute.String("wms.product.id", productID),
	}
}

// MessagingSpanAttributes describes a broker operation on destination
func MessagingSpanAttributes(system, destination, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.MessagingSystemKey.String(system),
		semconv.MessagingDestinationNameKey.String(destination),
		semconv.MessagingOperationKey.String(operation),
	}
}
