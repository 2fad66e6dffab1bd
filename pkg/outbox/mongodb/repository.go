// Package mongodb keeps the outbox in a MongoDB collection next to the
// ledger, so SaveAll joins the caller's transaction.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
)

const DefaultCollectionName = "outbox_events"

// delivered events are kept a week for replay investigations
const publishedTTL = 7 * 24 * time.Hour

type OutboxRepository struct {
	collection *wmsmongo.InstrumentedCollection
}

func NewOutboxRepository(client *wmsmongo.InstrumentedClient) *OutboxRepository {
	return &OutboxRepository{collection: client.Collection(DefaultCollectionName)}
}

// retryable: not delivered and not dead
var pendingFilter = bson.M{
	"publishedAt": bson.M{"$exists": false},
	"$expr":       bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
}

// SaveAll inserts the events of one state change. ctx must be the
// transaction context of that change.
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(events))
	for _, event := range events {
		docs = append(docs, event)
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("save %d outbox events: %w", len(events), err)
	}
	return nil
}

func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	// _id is a UUIDv7 and sorts in append order
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, pendingFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode outbox events: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.update(ctx, eventID, bson.M{"$set": bson.M{"publishedAt": time.Now().UTC()}})
}

func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return r.update(ctx, eventID, bson.M{
		"$inc": bson.M{"retryCount": 1},
		"$set": bson.M{"lastError": errorMsg},
	})
}

func (r *OutboxRepository) update(ctx context.Context, eventID string, change bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, change)
	if err != nil {
		return fmt.Errorf("update outbox event %s: %w", eventID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	return nil
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, pendingFilter)
}

// EnsureIndexes creates the relay scan index and the TTL on delivered events.
// Undelivered events have no publishedAt and never expire.
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "publishedAt", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_pending_scan"),
		},
		{
			Keys:    bson.D{{Key: "aggregateType", Value: 1}, {Key: "aggregateId", Value: 1}},
			Options: options.Index().SetName("idx_aggregate"),
		},
		{
			Keys: bson.D{{Key: "publishedAt", Value: 1}},
			Options: options.Index().
				SetName("idx_published_ttl").
				SetExpireAfterSeconds(int32(publishedTTL.Seconds())),
		},
	}
	if err := r.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("create outbox indexes: %w", err)
	}
	return nil
}
