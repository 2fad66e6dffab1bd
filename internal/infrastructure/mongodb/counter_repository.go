package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

// CountersCollection holds one document per named sequence
const CountersCollection = "counters"

// CounterRepository implements domain.SequenceGenerator with an upserted $inc.
// Inside a transaction an aborted caller gives its number back.
type CounterRepository struct {
	collection *wmsmongo.InstrumentedCollection
}

func NewCounterRepository(client *wmsmongo.InstrumentedClient) *CounterRepository {
	return &CounterRepository{collection: client.Collection(CountersCollection)}
}

func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Value int64 `bson:"value"`
	}
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", name, err)
	}
	return doc.Value, nil
}
