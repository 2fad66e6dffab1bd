// Package outbox stores events next to the state change that produced them and
// relays them to Kafka afterwards, so a ledger movement is never committed
// without its event or announced without being committed.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
)

// DefaultMaxRetries bounds how often the relay retries a single event. An
// event past this limit is dead: it stays in the collection with its last
// error and no longer holds back its aggregate.
const DefaultMaxRetries = 10

// OutboxEvent is one stored CloudEvent. IDs are UUIDv7, so sorting by _id
// replays events in the order they were appended, also within one millisecond.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEventFromCloudEvent serializes event for the topic it will be
// relayed to. aggregateID is the ordering unit: a shelf, a stock position, a
// route or a packing session.
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, event *cloudevents.WMSCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event %s: %w", event.Type, event.ID, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("outbox id: %w", err)
	}

	return &OutboxEvent{
		ID:            id.String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     event.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// IsDead reports whether the relay has given up on the event
func (e *OutboxEvent) IsDead() bool {
	limit := e.MaxRetries
	if limit <= 0 {
		limit = DefaultMaxRetries
	}
	return !e.IsPublished() && e.RetryCount >= limit
}

// ShouldRetry is true while the event is neither delivered nor dead
func (e *OutboxEvent) ShouldRetry() bool {
	return !e.IsPublished() && !e.IsDead()
}

func (e *OutboxEvent) ToCloudEvent() (*cloudevents.WMSCloudEvent, error) {
	var event cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode outbox event %s: %w", e.ID, err)
	}
	return &event, nil
}
