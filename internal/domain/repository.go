package domain

import "context"

// Lookups return (nil, nil) when nothing matches. Writes join the
// transaction carried by ctx, if any.

// ShelfRepository defines the interface for shelf persistence
type ShelfRepository interface {
	Insert(ctx context.Context, shelf *Shelf) error
	FindByID(ctx context.Context, id string) (*Shelf, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Shelf, error)
	FindByWarehouse(ctx context.Context, warehouseID string) ([]*Shelf, error)
	// FindByType returns the warehouse's shelves of type t ordered by global slot
	FindByType(ctx context.Context, warehouseID string, t ShelfType) ([]*Shelf, error)
	// SubtreeIDs returns id and the ids of all its descendants
	SubtreeIDs(ctx context.Context, id string) ([]string, error)
	CountChildren(ctx context.Context, id string) (int64, error)
	// UpdateTree persists changed shelves and bumps the version of touched
	// ones, so concurrent reparents over the same nodes conflict.
	UpdateTree(ctx context.Context, changed []*Shelf, touched []string) error
	Delete(ctx context.Context, id string) error
}

// StockRepository stores the ledger and the materialized levels
type StockRepository interface {
	// Apply updates the (shelf, product) level and inserts the ledger row
	// with its before/after snapshot. An OUT beyond the level fails with
	// *InsufficientStockError and writes nothing.
	Apply(ctx context.Context, movement *StockMovement) error
	Level(ctx context.Context, shelfID, productID string) (int64, error)
	// LevelsByShelves returns the non-zero levels held on any of shelfIDs
	LevelsByShelves(ctx context.Context, shelfIDs []string) ([]StockLevel, error)
	// LevelsForProduct returns the non-zero levels of one product on shelfIDs
	LevelsForProduct(ctx context.Context, productID string, shelfIDs []string) ([]StockLevel, error)
	SumByShelves(ctx context.Context, shelfIDs []string) (int64, error)
	History(ctx context.Context, filter MovementFilter) ([]*StockMovement, int64, error)
	// LedgerSum recomputes the signed sum of every movement for a pair
	LedgerSum(ctx context.Context, shelfID, productID string) (sum int64, count int64, err error)
}

// RouteRepository defines the interface for route persistence
type RouteRepository interface {
	// Insert fails with ErrActiveRouteMembership if an order is already in an active route
	Insert(ctx context.Context, route *Route) error
	FindByID(ctx context.Context, id string) (*Route, error)
	// Update writes the route if its version is unchanged and increments it;
	// otherwise it fails with ErrConcurrentModification.
	Update(ctx context.Context, route *Route) error
	List(ctx context.Context, status RouteStatus, offset, limit int64) ([]*Route, int64, error)
	// ActiveRouteByOrder maps each of orderIDs that is in an active route to that route id
	ActiveRouteByOrder(ctx context.Context, orderIDs []string) (map[string]string, error)
	// ActiveRouteByPickShelf returns the id of an active route with a pick record
	// sourced from or staged on shelfID, or "" if there is none
	ActiveRouteByPickShelf(ctx context.Context, shelfID string) (string, error)
}

// PackingSessionRepository defines the interface for packing session persistence
type PackingSessionRepository interface {
	// Insert fails with ErrActiveSessionExists if the route already has an active session
	Insert(ctx context.Context, session *PackingSession) error
	FindByID(ctx context.Context, id string) (*PackingSession, error)
	FindActiveByRoute(ctx context.Context, routeID string) (*PackingSession, error)
	Update(ctx context.Context, session *PackingSession) error
}

// SequenceGenerator hands out increasing numbers per named counter
type SequenceGenerator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Counter names
const (
	RouteCounter = "route"
)

// ShelfSlotCounter names the global slot counter of a warehouse
func ShelfSlotCounter(warehouseID string) string {
	return "shelf_slot:" + warehouseID
}
