package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// EventFactory stamps envelopes for one source
type EventFactory struct {
	source string
	now    func() time.Time
}

func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// Scope holds the wms* extension values an event carries besides its subject
type Scope struct {
	RouteID     string
	OrderID     string
	WarehouseID string
}

// CreateEvent wraps data in a structured-mode envelope. The correlation id and
// W3C traceparent come from ctx, so consumers can join the event to the
// request that caused it.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}, scope Scope) *WMSCloudEvent {
	return &WMSCloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Source:          f.source,
		Type:            eventType,
		Subject:         subject,
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,

		CorrelationID: logging.CorrelationIDFromContext(ctx),
		TraceParent:   traceParent(ctx),
		RouteID:       scope.RouteID,
		OrderID:       scope.OrderID,
		WarehouseID:   scope.WarehouseID,
	}
}

func traceParent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}
