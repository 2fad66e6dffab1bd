package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const (
	// StockLevelsCollection holds the materialized level per (shelf, product)
	StockLevelsCollection = "stock_levels"
	// StockMovementsCollection is the append-only ledger
	StockMovementsCollection = "stock_movements"
)

// StockRepository implements domain.StockRepository over the level documents and the ledger.
// Apply must run inside a transaction so the level and its ledger row commit together.
type StockRepository struct {
	levels    *wmsmongo.InstrumentedCollection
	movements *wmsmongo.InstrumentedCollection
}

func NewStockRepository(client *wmsmongo.InstrumentedClient) *StockRepository {
	return &StockRepository{
		levels:    client.Collection(StockLevelsCollection),
		movements: client.Collection(StockMovementsCollection),
	}
}

// EnsureIndexes creates the level and ledger indexes
func (r *StockRepository) EnsureIndexes(ctx context.Context) error {
	levelIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shelfId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_shelf_product"),
		},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "quantity", Value: 1}}},
	}
	if err := r.levels.CreateIndexes(ctx, levelIndexes); err != nil {
		return fmt.Errorf("failed to create stock level indexes: %w", err)
	}

	movementIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "shelfId", Value: 1}, {Key: "productId", Value: 1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "routeId", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}}},
	}
	if err := r.movements.CreateIndexes(ctx, movementIndexes); err != nil {
		return fmt.Errorf("failed to create stock movement indexes: %w", err)
	}
	return nil
}

type levelDocument struct {
	ShelfID   string    `bson:"shelfId"`
	ProductID string    `bson:"productId"`
	Quantity  int64     `bson:"quantity"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Apply moves the level with one atomic $inc and inserts the ledger row. An OUT
// only matches a level holding at least the quantity, so a shortage writes nothing.
func (r *StockRepository) Apply(ctx context.Context, movement *domain.StockMovement) error {
	key := bson.M{"shelfId": movement.ShelfID, "productId": movement.ProductID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var filter bson.M
	if movement.Direction == domain.DirectionOut {
		filter = bson.M{
			"shelfId":   movement.ShelfID,
			"productId": movement.ProductID,
			"quantity":  bson.M{"$gte": movement.Quantity},
		}
	} else {
		filter = key
		opts.SetUpsert(true)
	}

	update := bson.M{
		"$inc": bson.M{"quantity": movement.Signed()},
		"$set": bson.M{"updatedAt": movement.CreatedAt},
	}

	var level levelDocument
	err := r.levels.FindOneAndUpdate(ctx, filter, update, opts).Decode(&level)
	if err == mongo.ErrNoDocuments {
		available, lerr := r.Level(ctx, movement.ShelfID, movement.ProductID)
		if lerr != nil {
			return lerr
		}
		return &domain.InsufficientStockError{
			ShelfID:   movement.ShelfID,
			ProductID: movement.ProductID,
			Requested: movement.Quantity,
			Available: available,
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update stock level: %w", err)
	}

	movement.QuantityAfter = level.Quantity
	movement.QuantityBefore = level.Quantity - movement.Signed()

	if _, err := r.movements.InsertOne(ctx, movement); err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}
	return nil
}

func (r *StockRepository) Level(ctx context.Context, shelfID, productID string) (int64, error) {
	var level levelDocument
	err := r.levels.FindOne(ctx, bson.M{"shelfId": shelfID, "productId": productID}).Decode(&level)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stock level: %w", err)
	}
	return level.Quantity, nil
}

func (r *StockRepository) LevelsByShelves(ctx context.Context, shelfIDs []string) ([]domain.StockLevel, error) {
	if len(shelfIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"shelfId":  bson.M{"$in": shelfIDs},
		"quantity": bson.M{"$ne": 0},
	}
	return r.findLevels(ctx, filter, wmsmongo.SortAscending("productId", "shelfId"))
}

func (r *StockRepository) LevelsForProduct(ctx context.Context, productID string, shelfIDs []string) ([]domain.StockLevel, error) {
	if len(shelfIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"productId": productID,
		"shelfId":   bson.M{"$in": shelfIDs},
		"quantity":  bson.M{"$ne": 0},
	}
	return r.findLevels(ctx, filter, wmsmongo.SortAscending("shelfId"))
}

func (r *StockRepository) findLevels(ctx context.Context, filter bson.M, sort bson.D) ([]domain.StockLevel, error) {
	cursor, err := r.levels.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to find stock levels: %w", err)
	}
	defer cursor.Close(ctx)

	var levels []domain.StockLevel
	if err := cursor.All(ctx, &levels); err != nil {
		return nil, fmt.Errorf("failed to decode stock levels: %w", err)
	}
	return levels, nil
}

func (r *StockRepository) SumByShelves(ctx context.Context, shelfIDs []string) (int64, error) {
	if len(shelfIDs) == 0 {
		return 0, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shelfId": bson.M{"$in": shelfIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$quantity"}}}},
	}

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := r.aggregate(ctx, r.levels, pipeline, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// History returns one page of ledger rows, newest first, and the total match count
func (r *StockRepository) History(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, int64, error) {
	query := movementQuery(filter)

	total, err := r.movements.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count stock movements: %w", err)
	}

	opts := options.Find().
		SetSort(wmsmongo.SortDescending("seq")).
		SetSkip(filter.Offset)
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.movements.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find stock movements: %w", err)
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, 0, fmt.Errorf("failed to decode stock movements: %w", err)
	}
	return movements, total, nil
}

func movementQuery(filter domain.MovementFilter) bson.M {
	query := bson.M{}
	if filter.ShelfID != "" {
		query["shelfId"] = filter.ShelfID
	}
	if filter.ProductID != "" {
		query["productId"] = filter.ProductID
	}
	if filter.OrderID != "" {
		query["orderId"] = filter.OrderID
	}
	if filter.RouteID != "" {
		query["routeId"] = filter.RouteID
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	wmsmongo.TimeRange(query, "createdAt", filter.From, filter.To)
	return query
}

// LedgerSum adds IN rows and subtracts OUT rows server side
func (r *StockRepository) LedgerSum(ctx context.Context, shelfID, productID string) (int64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shelfId": shelfID, "productId": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"sum": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$direction", string(domain.DirectionIn)}},
				"$quantity",
				bson.M{"$multiply": bson.A{"$quantity", -1}},
			}}},
			"count": bson.M{"$sum": 1},
		}}},
	}

	var rows []struct {
		Sum   int64 `bson:"sum"`
		Count int64 `bson:"count"`
	}
	if err := r.aggregate(ctx, r.movements, pipeline, &rows); err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Sum, rows[0].Count, nil
}

func (r *StockRepository) aggregate(ctx context.Context, collection *wmsmongo.InstrumentedCollection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to aggregate %s: %w", collection.Name(), err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s aggregate: %w", collection.Name(), err)
	}
	return nil
}
