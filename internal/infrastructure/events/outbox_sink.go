package events

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

// OutboxSink wraps domain events as CloudEvents and stores them in the outbox.
// Append is called with the transaction context, so the events commit with the change.
type OutboxSink struct {
	repo    outbox.Repository
	factory *cloudevents.EventFactory
}

func NewOutboxSink(repo outbox.Repository, factory *cloudevents.EventFactory) *OutboxSink {
	return &OutboxSink{repo: repo, factory: factory}
}

// routing is where an event goes and which aggregate it belongs to
type routing struct {
	topic         string
	aggregateType string
	aggregateID   string
	scope         cloudevents.Scope
}

func (s *OutboxSink) Append(ctx context.Context, events ...domain.DomainEvent) error {
	records := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		r, err := route(event)
		if err != nil {
			return err
		}

		subject := r.aggregateType + "/" + r.aggregateID
		cloudEvent := s.factory.CreateEvent(ctx, event.EventType(), subject, event, r.scope)
		cloudEvent.Time = event.OccurredAt()

		record, err := outbox.NewOutboxEventFromCloudEvent(r.aggregateID, r.aggregateType, r.topic, cloudEvent)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		records = append(records, record)
	}
	return s.repo.SaveAll(ctx, records)
}

func route(event domain.DomainEvent) (routing, error) {
	stock := func(shelfID, productID string) routing {
		return routing{
			topic:         kafka.Topics.StockEvents,
			aggregateType: "stock",
			aggregateID:   shelfID + ":" + productID,
		}
	}
	shelf := func(shelfID, warehouseID string) routing {
		return routing{
			topic:         kafka.Topics.ShelfEvents,
			aggregateType: "shelf",
			aggregateID:   shelfID,
			scope:         cloudevents.Scope{WarehouseID: warehouseID},
		}
	}
	fulfillment := func(routeID, orderID string) routing {
		return routing{
			topic:         kafka.Topics.FulfillmentEvents,
			aggregateType: "route",
			aggregateID:   routeID,
			scope:         cloudevents.Scope{RouteID: routeID, OrderID: orderID},
		}
	}

	switch e := event.(type) {
	case *domain.StockMovementRecordedEvent:
		r := stock(e.ShelfID, e.ProductID)
		r.scope = cloudevents.Scope{RouteID: e.RouteID, OrderID: e.OrderID}
		return r, nil
	case *domain.StockTransferredEvent:
		// keyed by product so both legs of a product's transfers stay ordered
		return routing{
			topic:         kafka.Topics.StockEvents,
			aggregateType: "product",
			aggregateID:   e.ProductID,
		}, nil
	case *domain.ShelfCreatedEvent:
		return shelf(e.ShelfID, e.WarehouseID), nil
	case *domain.ShelfUpdatedEvent:
		return shelf(e.ShelfID, e.WarehouseID), nil
	case *domain.ShelfMovedEvent:
		return shelf(e.ShelfID, e.WarehouseID), nil
	case *domain.ShelfDeletedEvent:
		return shelf(e.ShelfID, e.WarehouseID), nil
	case *domain.RouteCreatedEvent:
		r := fulfillment(e.RouteID, "")
		r.scope.WarehouseID = e.WarehouseID
		return r, nil
	case *domain.RouteOrderPickedEvent:
		return fulfillment(e.RouteID, e.OrderID), nil
	case *domain.RoutePickedEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.RoutePickingForceCompletedEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.RoutePickingResetEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.RouteLabelPrintedEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.RouteCompletedEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.RouteCancelledEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.PackingSessionStartedEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.PackingOrderPackedEvent:
		return fulfillment(e.RouteID, e.OrderID), nil
	case *domain.PackingSessionCompletedEvent:
		return fulfillment(e.RouteID, ""), nil
	case *domain.PackingSessionCancelledEvent:
		return fulfillment(e.RouteID, ""), nil
	default:
		return routing{}, fmt.Errorf("no outbox routing for event type %s", event.EventType())
	}
}
