package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const idempotencyKeysCollection = "idempotency_keys"

// MongoKeyRepository keeps keys in the idempotency_keys collection. Expired
// keys are removed by the TTL index on expiresAt.
type MongoKeyRepository struct {
	collection *wmsmongo.InstrumentedCollection
}

func NewMongoKeyRepository(client *wmsmongo.InstrumentedClient) *MongoKeyRepository {
	return &MongoKeyRepository{collection: client.Collection(idempotencyKeysCollection)}
}

func scopeFilter(key *IdempotencyKey) bson.M {
	return bson.M{"serviceId": key.ServiceID, "userId": key.UserID, "key": key.Key}
}

// AcquireLock inserts the key if it is unknown, or takes over a key whose
// previous attempt released its lock without a response. The insert carries a
// freshly generated _id, so ownership is decided by comparing ids rather than
// timestamps, which Mongo truncates to milliseconds.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	now := time.Now().UTC()
	attemptID := primitive.NewObjectID()

	insert := bson.M{
		"_id":                attemptID,
		"key":                key.Key,
		"serviceId":          key.ServiceID,
		"userId":             key.UserID,
		"requestPath":        key.RequestPath,
		"requestMethod":      key.RequestMethod,
		"requestFingerprint": key.RequestFingerprint,
		"createdAt":          key.CreatedAt,
		"expiresAt":          key.ExpiresAt,
		"lockedAt":           now,
	}

	var stored IdempotencyKey
	err := r.collection.FindOneAndUpdate(ctx, scopeFilter(key), bson.M{"$setOnInsert": insert},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return nil, false, fmt.Errorf("upsert idempotency key: %w", err)
	}
	if stored.ID == attemptID {
		return &stored, true, nil
	}
	if stored.IsCompleted() || stored.IsLocked() {
		return &stored, false, nil
	}

	return r.takeOver(ctx, &stored, now)
}

// takeOver locks a released key. Losing the race to another request leaves
// that request as the owner.
func (r *MongoKeyRepository) takeOver(ctx context.Context, released *IdempotencyKey, now time.Time) (*IdempotencyKey, bool, error) {
	filter := bson.M{
		"_id":         released.ID,
		"lockedAt":    bson.M{"$exists": false},
		"completedAt": bson.M{"$exists": false},
	}

	var locked IdempotencyKey
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"lockedAt": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&locked)
	switch {
	case err == nil:
		return &locked, true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return released, false, nil
	default:
		return nil, false, fmt.Errorf("lock released idempotency key: %w", err)
	}
}

func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	return r.updateByID(ctx, keyID, bson.M{"$unset": bson.M{"lockedAt": ""}})
}

func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	return r.updateByID(ctx, keyID, bson.M{
		"$set": bson.M{
			"responseCode":    responseCode,
			"responseBody":    responseBody,
			"responseHeaders": headers,
			"completedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	})
}

func (r *MongoKeyRepository) updateByID(ctx context.Context, keyID string, update bson.M) error {
	id, err := primitive.ObjectIDFromHex(keyID)
	if err != nil {
		return fmt.Errorf("idempotency key id %q: %w", keyID, err)
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	return r.collection.CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "serviceId", Value: 1}, {Key: "userId", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_service_user_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	})
}
