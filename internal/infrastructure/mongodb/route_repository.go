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

// RoutesCollection holds route documents with their orders and picking items
const RoutesCollection = "routes"

// RouteRepository implements domain.RouteRepository
type RouteRepository struct {
	collection *wmsmongo.InstrumentedCollection
}

func NewRouteRepository(client *wmsmongo.InstrumentedClient) *RouteRepository {
	return &RouteRepository{collection: client.Collection(RoutesCollection)}
}

// EnsureIndexes creates the route indexes. The partial unique index on
// orderIds keeps an order in at most one active route.
func (r *RouteRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "orderIds", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_order").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys:    bson.D{{Key: "orders.picks.shelfId", Value: 1}},
			Options: options.Index().SetName("idx_active_pick_shelf").SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys:    bson.D{{Key: "orders.picks.stagingShelfId", Value: 1}},
			Options: options.Index().SetName("idx_active_staging_shelf").SetPartialFilterExpression(bson.M{"active": true}),
		},
	}
	if err := r.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create route indexes: %w", err)
	}
	return nil
}

func (r *RouteRepository) Insert(ctx context.Context, route *domain.Route) error {
	if _, err := r.collection.InsertOne(ctx, route); err != nil {
		if wmsmongo.IsDuplicateKey(err) {
			return domain.ErrActiveRouteMembership
		}
		return fmt.Errorf("failed to insert route: %w", err)
	}
	return nil
}

func (r *RouteRepository) FindByID(ctx context.Context, id string) (*domain.Route, error) {
	var route domain.Route
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&route)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find route: %w", err)
	}
	return &route, nil
}

// Update replaces the route if nobody wrote it since it was read
func (r *RouteRepository) Update(ctx context.Context, route *domain.Route) error {
	next := *route
	next.Version = route.Version + 1

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": route.ID, "version": route.Version}, &next)
	if err != nil {
		return fmt.Errorf("failed to update route: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrConcurrentModification
	}
	route.Version = next.Version
	return nil
}

func (r *RouteRepository) List(ctx context.Context, status domain.RouteStatus, offset, limit int64) ([]*domain.Route, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	opts := options.Find().
		SetSort(wmsmongo.SortDescending("createdAt", "name")).
		SetSkip(offset).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}
	defer cursor.Close(ctx)

	var routes []*domain.Route
	if err := cursor.All(ctx, &routes); err != nil {
		return nil, 0, fmt.Errorf("failed to decode routes: %w", err)
	}
	return routes, total, nil
}

func (r *RouteRepository) ActiveRouteByOrder(ctx context.Context, orderIDs []string) (map[string]string, error) {
	active := make(map[string]string)
	if len(orderIDs) == 0 {
		return active, nil
	}

	filter := bson.M{"active": true, "orderIds": bson.M{"$in": orderIDs}}
	opts := options.Find().SetProjection(bson.M{"_id": 1, "orderIds": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find active routes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID       string   `bson:"_id"`
		OrderIDs []string `bson:"orderIds"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode active routes: %w", err)
	}

	wanted := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = true
	}
	for _, d := range docs {
		for _, id := range d.OrderIDs {
			if wanted[id] {
				active[id] = d.ID
			}
		}
	}
	return active, nil
}

func (r *RouteRepository) ActiveRouteByPickShelf(ctx context.Context, shelfID string) (string, error) {
	filter := bson.M{
		"active": true,
		"$or": bson.A{
			bson.M{"orders.picks.shelfId": shelfID},
			bson.M{"orders.picks.stagingShelfId": shelfID},
		},
	}
	var doc struct {
		ID string `bson:"_id"`
	}
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find active route by pick shelf: %w", err)
	}
	return doc.ID, nil
}
