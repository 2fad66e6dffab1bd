package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
)

type recordingPublisher struct {
	err    error
	topics []string
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func movementEvent() *cloudevents.WMSCloudEvent {
	return &cloudevents.WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            cloudevents.StockMovementRecorded,
		Source:          cloudevents.Source,
		Subject:         "shelf/sh-1",
		ID:              "evt-1",
		Time:            time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
		DataContentType: "application/json",
		Data:            map[string]any{"productId": "p-1", "quantity": 3},
		CorrelationID:   "corr-9",
		WarehouseID:     "wh-1",
	}
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(movementEvent())
	require.NoError(t, err)

	assert.Equal(t, "shelf/sh-1", string(msg.Key))
	assert.Contains(t, string(msg.Value), `"type":"wms.stock.movement-recorded"`)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "1.0", headers["ce-specversion"])
	assert.Equal(t, "evt-1", headers["ce-id"])
	assert.Equal(t, "corr-9", headers["ce-"+cloudevents.ExtCorrelationID])
	assert.Equal(t, "wh-1", headers["ce-"+cloudevents.ExtWarehouseID])
	assert.NotContains(t, headers, "ce-"+cloudevents.ExtRouteID)
	assert.NotContains(t, headers, "ce-traceparent")
}

func TestNewMessage_UnencodableData(t *testing.T) {
	event := movementEvent()
	event.Data = make(chan int)

	_, err := NewMessage(event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-1")
}

func TestInstrument(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig("fulfillment-service"))
	next := &recordingPublisher{}
	publisher := Instrument(next, m, logging.NewNop())

	require.NoError(t, publisher.PublishEvent(context.Background(), Topics.StockEvents, movementEvent()))

	next.err = errors.New("leader not available")
	err := publisher.PublishEvent(context.Background(), Topics.StockEvents, movementEvent())
	assert.ErrorIs(t, err, next.err)

	assert.Equal(t, []string{Topics.StockEvents, Topics.StockEvents}, next.topics)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KafkaEventsPublished.WithLabelValues(Topics.StockEvents, cloudevents.StockMovementRecorded, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KafkaEventsPublished.WithLabelValues(Topics.StockEvents, cloudevents.StockMovementRecorded, "failure")))
}

func TestWithCircuitBreaker(t *testing.T) {
	next := &recordingPublisher{err: errors.New("connection refused")}
	publisher := WithCircuitBreaker(next, nil, nil)

	for i := 0; i < int(resilience.DefaultFailureThreshold); i++ {
		err := publisher.PublishEvent(context.Background(), Topics.ShelfEvents, movementEvent())
		assert.ErrorIs(t, err, next.err)
	}

	err := publisher.PublishEvent(context.Background(), Topics.ShelfEvents, movementEvent())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, next.topics, int(resilience.DefaultFailureThreshold))
}

func TestDefaultTopicConfigs(t *testing.T) {
	configs := DefaultTopicConfigs()

	names := make([]string, 0, len(configs))
	for _, tc := range configs {
		names = append(names, tc.Name)
		assert.Positive(t, tc.Partitions)
		assert.Positive(t, tc.RetentionMs)
	}
	assert.ElementsMatch(t, []string{Topics.StockEvents, Topics.FulfillmentEvents, Topics.ShelfEvents}, names)
}
