package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// EventPublisher is what the outbox relay needs from a producer
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error
}

// PublisherFunc adapts a function to EventPublisher
type PublisherFunc func(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error

func (f PublisherFunc) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	return f(ctx, topic, event)
}

// NewPublisher builds the producer chain the outbox relay publishes through:
// breaker, then span and metrics, then the writers. The returned func closes
// the writers.
func NewPublisher(config *Config, m *metrics.Metrics, logger *logging.Logger) (EventPublisher, func() error) {
	producer := NewProducer(config)
	return WithCircuitBreaker(Instrument(producer, m, logger), logger, m), producer.Close
}

// Instrument records a producer span, the publish counter and latency, and a
// log line per event. Span attributes carry the aggregate subject and the
// correlation id so a stock movement can be followed from request to topic.
func Instrument(next EventPublisher, m *metrics.Metrics, logger *logging.Logger) EventPublisher {
	tracer := otel.Tracer("fulfillment-service/kafka")

	return PublisherFunc(func(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
		attrs := append(tracing.MessagingSpanAttributes("kafka", topic, "publish"),
			attribute.String("messaging.message.id", event.ID),
			attribute.String("cloudevents.event_type", event.Type),
			attribute.String("cloudevents.event_subject", event.Subject),
		)
		for name, value := range event.Extensions() {
			attrs = append(attrs, attribute.String("wms."+name, value))
		}

		ctx, span := tracer.Start(ctx, topic+" publish",
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		start := time.Now()
		err := next.PublishEvent(ctx, topic, event)
		elapsed := time.Since(start)

		m.RecordKafkaPublish(topic, event.Type, err == nil, elapsed)
		if logger != nil {
			logger.KafkaPublish(ctx, topic, event.Type, err == nil, elapsed)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish failed")
		}
		return err
	})
}

// WithCircuitBreaker stops hammering a broker that is down. The outbox keeps
// the events, so a rejected publish is retried on a later poll.
func WithCircuitBreaker(next EventPublisher, logger *logging.Logger, m *metrics.Metrics) EventPublisher {
	config := resilience.DefaultCircuitBreakerConfig("kafka-producer")
	config.MaxRequests = 5

	base := logger
	if base == nil {
		base = logging.NewNop()
	}
	breaker := resilience.NewCircuitBreaker(config, base.Logger, m)

	return PublisherFunc(func(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
		_, err := resilience.Execute(ctx, breaker, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, next.PublishEvent(ctx, topic, event)
		})
		return err
	})
}
