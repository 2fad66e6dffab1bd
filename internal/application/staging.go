package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// stockSourcer decides where picked stock is drawn from and where it is staged
type stockSourcer struct {
	shelves domain.ShelfRepository
	stock   domain.StockRepository
}

// pickSources returns the shelves picking may draw from: PICKING shelves
// first, then NORMAL ones, each group by global slot.
func (s stockSourcer) pickSources(ctx context.Context, warehouseID string) ([]*domain.Shelf, error) {
	var sources []*domain.Shelf
	for _, t := range []domain.ShelfType{domain.ShelfTypePicking, domain.ShelfTypeNormal} {
		shelves, err := s.shelves.FindByType(ctx, warehouseID, t)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s shelves: %w", t, err)
		}
		sources = append(sources, shelves...)
	}
	return sources, nil
}

// stagingShelf returns the warehouse's first PACKING shelf
func (s stockSourcer) stagingShelf(ctx context.Context, warehouseID string) (*domain.Shelf, error) {
	shelves, err := s.shelves.FindByType(ctx, warehouseID, domain.ShelfTypePacking)
	if err != nil {
		return nil, fmt.Errorf("failed to load packing shelves: %w", err)
	}
	if len(shelves) == 0 {
		return nil, domain.ErrPackingShelfNotConfigured
	}
	return shelves[0], nil
}

// locations maps each product to the path of the first pick source holding it
func (s stockSourcer) locations(ctx context.Context, warehouseID string, productIDs []string) (map[string]string, error) {
	sources, err := s.pickSources(ctx, warehouseID)
	if err != nil || len(sources) == 0 {
		return nil, err
	}
	ids, byID := shelfIndex(sources)

	out := make(map[string]string, len(productIDs))
	for _, productID := range productIDs {
		levels, err := s.stock.LevelsForProduct(ctx, productID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to read product levels: %w", err)
		}
		held := levelIndex(levels)
		for _, id := range ids {
			if held[id] > 0 {
				out[productID] = byID[id].Path
				break
			}
		}
	}
	return out, nil
}

// stageOrder plans the movements that take an order's demand off the pick
// sources and onto the staging shelf. Several sources are used when one
// does not hold enough.
func (s stockSourcer) stageOrder(ctx context.Context, route *domain.Route, orderID, userID string) ([]domain.PickRecord, []domain.MovementRequest, error) {
	ro := route.Order(orderID)
	if ro == nil {
		return nil, nil, domain.ErrOrderNotFound
	}
	staging, err := s.stagingShelf(ctx, route.WarehouseID)
	if err != nil {
		return nil, nil, err
	}
	sources, err := s.pickSources(ctx, route.WarehouseID)
	if err != nil {
		return nil, nil, err
	}
	ids, _ := shelfIndex(sources)

	var (
		picks []domain.PickRecord
		reqs  []domain.MovementRequest
	)
	products, demand := ro.ProductDemand()
	for _, productID := range products {
		want := demand[productID]
		levels, err := s.stock.LevelsForProduct(ctx, productID, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read product levels: %w", err)
		}
		held := levelIndex(levels)

		remaining := want
		for _, id := range ids {
			if remaining == 0 {
				break
			}
			if id == staging.ID {
				continue
			}
			take := min(remaining, held[id])
			if take <= 0 {
				continue
			}
			remaining -= take
			picks = append(picks, domain.PickRecord{
				ShelfID:        id,
				ProductID:      productID,
				Quantity:       take,
				StagingShelfID: staging.ID,
			})
			reqs = append(reqs, stagingPair(id, staging.ID, productID, take, domain.MovementPicking, domain.MovementPackingIn, route.ID, orderID, userID, "")...)
		}
		if remaining > 0 {
			return nil, nil, &domain.InsufficientStockError{
				ProductID: productID,
				Requested: want,
				Available: want - remaining,
			}
		}
	}
	return picks, reqs, nil
}

// releasePicks plans the movements that return staged stock to the shelves
// it was picked from
func releasePicks(released []domain.OrderPicks, mtype domain.MovementType, routeID, userID, notes string) []domain.MovementRequest {
	var reqs []domain.MovementRequest
	for _, op := range released {
		for _, p := range op.Picks {
			reqs = append(reqs, stagingPair(p.StagingShelfID, p.ShelfID, p.ProductID, p.Quantity, mtype, mtype, routeID, op.OrderID, userID, notes)...)
		}
	}
	return reqs
}

// stagingPair is an OUT on from followed by an IN on to
func stagingPair(from, to, productID string, qty int64, outType, inType domain.MovementType, routeID, orderID, userID, notes string) []domain.MovementRequest {
	return []domain.MovementRequest{
		{
			ShelfID:   from,
			ProductID: productID,
			Type:      outType,
			Direction: domain.DirectionOut,
			Quantity:  qty,
			OrderID:   orderID,
			RouteID:   routeID,
			Notes:     notes,
			UserID:    userID,
		},
		{
			ShelfID:   to,
			ProductID: productID,
			Type:      inType,
			Direction: domain.DirectionIn,
			Quantity:  qty,
			OrderID:   orderID,
			RouteID:   routeID,
			Notes:     notes,
			UserID:    userID,
		},
	}
}

func shelfIndex(shelves []*domain.Shelf) ([]string, map[string]*domain.Shelf) {
	ids := make([]string, 0, len(shelves))
	byID := make(map[string]*domain.Shelf, len(shelves))
	for _, s := range shelves {
		ids = append(ids, s.ID)
		byID[s.ID] = s
	}
	return ids, byID
}

func levelIndex(levels []domain.StockLevel) map[string]int64 {
	out := make(map[string]int64, len(levels))
	for _, l := range levels {
		out[l.ShelfID] += l.Quantity
	}
	return out
}
