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

// ShelvesCollection holds one document per shelf
const ShelvesCollection = "shelves"

// ShelfRepository implements domain.ShelfRepository
type ShelfRepository struct {
	collection *wmsmongo.InstrumentedCollection
}

func NewShelfRepository(client *wmsmongo.InstrumentedClient) *ShelfRepository {
	return &ShelfRepository{collection: client.Collection(ShelvesCollection)}
}

// EnsureIndexes creates the barcode and tree indexes
func (r *ShelfRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "barcode", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_barcode")},
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "type", Value: 1}, {Key: "globalSlot", Value: 1}}},
		{Keys: bson.D{{Key: "parentId", Value: 1}}},
		{Keys: bson.D{{Key: "ancestorIds", Value: 1}}},
	}
	if err := r.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create shelf indexes: %w", err)
	}
	return nil
}

func (r *ShelfRepository) Insert(ctx context.Context, shelf *domain.Shelf) error {
	if _, err := r.collection.InsertOne(ctx, shelf); err != nil {
		if wmsmongo.IsDuplicateKey(err) {
			return domain.ErrDuplicateShelfBarcode
		}
		return fmt.Errorf("failed to insert shelf: %w", err)
	}
	return nil
}

func (r *ShelfRepository) FindByID(ctx context.Context, id string) (*domain.Shelf, error) {
	var shelf domain.Shelf
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&shelf)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find shelf: %w", err)
	}
	return &shelf, nil
}

func (r *ShelfRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Shelf, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *ShelfRepository) FindByWarehouse(ctx context.Context, warehouseID string) ([]*domain.Shelf, error) {
	return r.find(ctx, bson.M{"warehouseId": warehouseID})
}

func (r *ShelfRepository) FindByType(ctx context.Context, warehouseID string, t domain.ShelfType) ([]*domain.Shelf, error) {
	return r.find(ctx, bson.M{"warehouseId": warehouseID, "type": t})
}

func (r *ShelfRepository) find(ctx context.Context, filter bson.M) ([]*domain.Shelf, error) {
	opts := options.Find().SetSort(wmsmongo.SortAscending("globalSlot", "_id"))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find shelves: %w", err)
	}
	defer cursor.Close(ctx)

	var shelves []*domain.Shelf
	if err := cursor.All(ctx, &shelves); err != nil {
		return nil, fmt.Errorf("failed to decode shelves: %w", err)
	}
	return shelves, nil
}

// SubtreeIDs answers from the multikey ancestorIds index, one query for any depth
func (r *ShelfRepository) SubtreeIDs(ctx context.Context, id string) ([]string, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"_id": id},
		bson.M{"ancestorIds": id},
	}}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find subtree: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode subtree: %w", err)
	}

	found := false
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID == id {
			found = true
		}
		ids = append(ids, d.ID)
	}
	if !found {
		return nil, nil
	}
	return ids, nil
}

func (r *ShelfRepository) CountChildren(ctx context.Context, id string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"parentId": id})
}

// UpdateTree replaces every changed shelf guarded by its version, then bumps
// the version of the touched ones.
func (r *ShelfRepository) UpdateTree(ctx context.Context, changed []*domain.Shelf, touched []string) error {
	for _, s := range changed {
		result, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": s.ID, "version": s.Version},
			bson.M{
				"$set": bson.M{
					"name":         s.Name,
					"parentId":     s.ParentID,
					"ancestorIds":  s.AncestorIDs,
					"path":         s.Path,
					"isSellable":   s.IsSellable,
					"isReservable": s.IsReservable,
					"updatedAt":    s.UpdatedAt,
				},
				"$inc": bson.M{"version": 1},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to update shelf %s: %w", s.ID, err)
		}
		if result.MatchedCount == 0 {
			return domain.ErrConcurrentModification
		}
	}

	if len(touched) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(touched))
	for _, id := range touched {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$inc": bson.M{"version": 1}}))
	}
	if _, err := r.collection.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to bump shelf versions: %w", err)
	}
	return nil
}

func (r *ShelfRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete shelf: %w", err)
	}
	return nil
}
