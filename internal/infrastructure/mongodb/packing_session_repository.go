package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

// PackingSessionsCollection holds packing sessions and their items
const PackingSessionsCollection = "packing_sessions"

// PackingSessionRepository implements domain.PackingSessionRepository
type PackingSessionRepository struct {
	collection *wmsmongo.InstrumentedCollection
}

func NewPackingSessionRepository(client *wmsmongo.InstrumentedClient) *PackingSessionRepository {
	return &PackingSessionRepository{collection: client.Collection(PackingSessionsCollection)}
}

// EnsureIndexes creates the session indexes. At most one ACTIVE session per route.
func (r *PackingSessionRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "routeId", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_route_session").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.SessionStatusActive}),
		},
		{Keys: bson.D{{Key: "routeId", Value: 1}, {Key: "startedAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
	}
	if err := r.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create packing session indexes: %w", err)
	}
	return nil
}

func (r *PackingSessionRepository) Insert(ctx context.Context, session *domain.PackingSession) error {
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if wmsmongo.IsDuplicateKey(err) {
			return domain.ErrActiveSessionExists
		}
		return fmt.Errorf("failed to insert packing session: %w", err)
	}
	return nil
}

func (r *PackingSessionRepository) FindByID(ctx context.Context, id string) (*domain.PackingSession, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *PackingSessionRepository) FindActiveByRoute(ctx context.Context, routeID string) (*domain.PackingSession, error) {
	return r.findOne(ctx, bson.M{"routeId": routeID, "status": domain.SessionStatusActive})
}

func (r *PackingSessionRepository) findOne(ctx context.Context, filter bson.M) (*domain.PackingSession, error) {
	var session domain.PackingSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find packing session: %w", err)
	}
	return &session, nil
}

func (r *PackingSessionRepository) Update(ctx context.Context, session *domain.PackingSession) error {
	next := *session
	next.Version = session.Version + 1

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": session.ID, "version": session.Version}, &next)
	if err != nil {
		return fmt.Errorf("failed to update packing session: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrConcurrentModification
	}
	session.Version = next.Version
	return nil
}
