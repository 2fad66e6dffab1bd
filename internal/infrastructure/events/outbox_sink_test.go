package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/contracts/asyncapi"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

type memoryOutbox struct {
	saved []*outbox.OutboxEvent
}

func (m *memoryOutbox) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	m.saved = append(m.saved, events...)
	return nil
}

func (m *memoryOutbox) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	return nil, nil
}
func (m *memoryOutbox) MarkPublished(ctx context.Context, eventID string) error { return nil }
func (m *memoryOutbox) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return nil
}
func (m *memoryOutbox) CountPending(ctx context.Context) (int64, error) { return 0, nil }

var at = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func everyEvent() []domain.DomainEvent {
	return []domain.DomainEvent{
		&domain.StockMovementRecordedEvent{MovementID: "mv-1", ShelfID: "s-1", ProductID: "p-1", Type: "PICKING",
			Direction: "OUT", Quantity: 3, QuantityBefore: 10, QuantityAfter: 7, OrderID: "o-1", RouteID: "r-1", RecordedAt: at},
		&domain.StockTransferredEvent{FromShelfID: "s-1", ToShelfID: "s-2", ProductID: "p-1", Quantity: 4,
			OutMovementID: "mv-2", InMovementID: "mv-3", ReferenceNumber: "ref-1", TransferredAt: at},
		&domain.ShelfCreatedEvent{ShelfID: "s-1", WarehouseID: "WH-1", Name: "A", Barcode: "SH000001", Type: "NORMAL",
			Path: "A", GlobalSlot: 1, CreatedAt: at},
		&domain.ShelfUpdatedEvent{ShelfID: "s-1", WarehouseID: "WH-1", Name: "B", Path: "B", IsSellable: true, AffectedShelves: 1, UpdatedAt: at},
		&domain.ShelfMovedEvent{ShelfID: "s-1", WarehouseID: "WH-1", NewParentID: "s-2", Path: "Z/B", AffectedShelves: 2, MovedAt: at},
		&domain.ShelfDeletedEvent{ShelfID: "s-1", WarehouseID: "WH-1", Barcode: "SH000001", DeletedAt: at},
		&domain.RouteCreatedEvent{RouteID: "r-1", Name: "R000001", WarehouseID: "WH-1", OrderIDs: []string{"o-1"}, TotalItemCount: 3, CreatedAt: at},
		&domain.RouteOrderPickedEvent{RouteID: "r-1", OrderID: "o-1", PickedAt: at},
		&domain.RoutePickedEvent{RouteID: "r-1", PickedItemCount: 3, PickedAt: at},
		&domain.RoutePickingForceCompletedEvent{RouteID: "r-1", OrderIDs: []string{"o-1"}, UserID: "u-1", CompletedAt: at},
		&domain.RoutePickingResetEvent{RouteID: "r-1", ResetAt: at},
		&domain.RouteLabelPrintedEvent{RouteID: "r-1", PrintCount: 1, PrintedAt: at},
		&domain.RouteCompletedEvent{RouteID: "r-1", CompletedAt: at},
		&domain.RouteCancelledEvent{RouteID: "r-1", PreviousStatus: "READY", ReleasedOrders: []string{"o-1"}, CancelledAt: at},
		&domain.PackingSessionStartedEvent{SessionID: "ps-1", RouteID: "r-1", TotalOrders: 1, StartedAt: at},
		&domain.PackingOrderPackedEvent{SessionID: "ps-1", RouteID: "r-1", OrderID: "o-1", Products: 1, PackedAt: at},
		&domain.PackingSessionCompletedEvent{SessionID: "ps-1", RouteID: "r-1", PackedOrders: 1, CompletedAt: at},
		&domain.PackingSessionCancelledEvent{SessionID: "ps-1", RouteID: "r-1", CancelledAt: at},
	}
}

func TestOutboxSink_Append(t *testing.T) {
	repo := &memoryOutbox{}
	sink := NewOutboxSink(repo, cloudevents.NewEventFactory(cloudevents.Source))
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")

	events := everyEvent()
	require.NoError(t, sink.Append(ctx, events...))
	require.Len(t, repo.saved, len(events))

	movement := repo.saved[0]
	assert.Equal(t, kafka.Topics.StockEvents, movement.Topic)
	assert.Equal(t, "s-1:p-1", movement.AggregateID)
	ce, err := movement.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "stock/s-1:p-1", ce.Subject)
	assert.Equal(t, "corr-1", ce.CorrelationID)
	assert.Equal(t, "r-1", ce.RouteID)
	assert.True(t, ce.Time.Equal(at))

	assert.Equal(t, kafka.Topics.ShelfEvents, repo.saved[2].Topic)
	assert.Equal(t, kafka.Topics.FulfillmentEvents, repo.saved[6].Topic)
	assert.Equal(t, "r-1", repo.saved[15].AggregateID)
}

func TestOutboxSink_PayloadsMatchContract(t *testing.T) {
	validator, err := asyncapi.NewEventValidator("../../../api/asyncapi.yaml")
	require.NoError(t, err)

	repo := &memoryOutbox{}
	sink := NewOutboxSink(repo, cloudevents.NewEventFactory(cloudevents.Source))
	require.NoError(t, sink.Append(context.Background(), everyEvent()...))

	for _, record := range repo.saved {
		t.Run(record.EventType, func(t *testing.T) {
			assert.True(t, validator.HasSchema(record.EventType))
			assert.NoError(t, validator.ValidateEventJSON(record.Payload))
		})
	}
}

type unknownEvent struct{}

func (unknownEvent) EventType() string     { return "wms.unknown" }
func (unknownEvent) OccurredAt() time.Time { return at }

func TestOutboxSink_UnknownEvent(t *testing.T) {
	repo := &memoryOutbox{}
	sink := NewOutboxSink(repo, cloudevents.NewEventFactory(cloudevents.Source))

	err := sink.Append(context.Background(), unknownEvent{})
	assert.Error(t, err)
	assert.Empty(t, repo.saved)
}
