package application

import (
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// RecordMovementCommand represents the command to record a manual ledger movement
type RecordMovementCommand struct {
	ShelfID         string
	ProductID       string
	Type            domain.MovementType
	Direction       domain.Direction
	Quantity        int64
	OrderID         string
	RouteID         string
	ReferenceNumber string
	Notes           string
	UserID          string
}

// HistoryQuery represents the query for ledger history
type HistoryQuery struct {
	ShelfID   string
	ProductID string
	OrderID   string
	RouteID   string
	Type      domain.MovementType
	From      *time.Time
	To        *time.Time
	Page      int64
	PageSize  int64
}

// TransferCommand represents the command to move stock between two shelves
type TransferCommand struct {
	FromShelfID     string
	ToShelfID       string
	ProductID       string
	Quantity        int64
	ReferenceNumber string
	Notes           string
	UserID          string
}

// CreateShelfCommand represents the command to create a shelf
type CreateShelfCommand struct {
	ParentID     *string
	Name         string
	Barcode      string
	Type         domain.ShelfType
	WarehouseID  string
	GlobalSlot   *int64
	IsSellable   *bool
	IsReservable *bool
	UserID       string
}

// UpdateShelfCommand represents the command to rename a shelf or change its flags
type UpdateShelfCommand struct {
	ShelfID      string
	Name         *string
	IsSellable   *bool
	IsReservable *bool
	UserID       string
}

// MoveShelfCommand represents the command to reparent a shelf. A nil
// NewParentID makes the shelf a root.
type MoveShelfCommand struct {
	ShelfID     string
	NewParentID *string
	UserID      string
}

// CreateRouteCommand represents the command to consolidate orders into a route
type CreateRouteCommand struct {
	OrderIDs    []string
	Description string
	UserID      string
}

// ListRoutesQuery represents the query to list routes
type ListRoutesQuery struct {
	Status   domain.RouteStatus
	Page     int64
	PageSize int64
}

// CandidateOrdersQuery represents the query for orders that can join a new route
type CandidateOrdersQuery struct {
	WarehouseID string
	Search      string
	Limit       int
}

// PickScanCommand represents one picking scan
type PickScanCommand struct {
	RouteID  string
	Barcode  string
	Quantity int64
	UserID   string
}

// BulkScanCommand represents a batch of single-unit picking scans
type BulkScanCommand struct {
	RouteID  string
	Barcodes []string
	UserID   string
}

// StartPackingCommand represents the command to open a packing session
type StartPackingCommand struct {
	RouteID   string
	StationID string
	UserID    string
}

// PackScanCommand represents one packing scan
type PackScanCommand struct {
	SessionID string
	Barcode   string
	UserID    string
}

// CompleteOrderCommand represents the command to finish packing one order
type CompleteOrderCommand struct {
	SessionID   string
	OrderID     string
	Consumables []domain.ConsumableUsage
	UserID      string
}
