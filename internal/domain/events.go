package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// StockMovementRecordedEvent is published for every ledger row
type StockMovementRecordedEvent struct {
	MovementID      string    `json:"movementId"`
	ShelfID         string    `json:"shelfId"`
	ProductID       string    `json:"productId"`
	Type            string    `json:"type"`
	Direction       string    `json:"direction"`
	Quantity        int64     `json:"quantity"`
	QuantityBefore  int64     `json:"quantityBefore"`
	QuantityAfter   int64     `json:"quantityAfter"`
	OrderID         string    `json:"orderId,omitempty"`
	RouteID         string    `json:"routeId,omitempty"`
	SourceShelfID   string    `json:"sourceShelfId,omitempty"`
	TargetShelfID   string    `json:"targetShelfId,omitempty"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	RecordedAt      time.Time `json:"recordedAt"`
}

func (e *StockMovementRecordedEvent) EventType() string     { return "wms.stock.movement-recorded" }
func (e *StockMovementRecordedEvent) OccurredAt() time.Time { return e.RecordedAt }

// StockTransferredEvent is published when a transfer commits
type StockTransferredEvent struct {
	FromShelfID     string    `json:"fromShelfId"`
	ToShelfID       string    `json:"toShelfId"`
	ProductID       string    `json:"productId"`
	Quantity        int64     `json:"quantity"`
	OutMovementID   string    `json:"outMovementId"`
	InMovementID    string    `json:"inMovementId"`
	ReferenceNumber string    `json:"referenceNumber"`
	UserID          string    `json:"userId,omitempty"`
	TransferredAt   time.Time `json:"transferredAt"`
}

func (e *StockTransferredEvent) EventType() string     { return "wms.stock.transferred" }
func (e *StockTransferredEvent) OccurredAt() time.Time { return e.TransferredAt }

// ShelfCreatedEvent is published when a shelf is created
type ShelfCreatedEvent struct {
	ShelfID     string    `json:"shelfId"`
	WarehouseID string    `json:"warehouseId"`
	Name        string    `json:"name"`
	Barcode     string    `json:"barcode"`
	Type        string    `json:"type"`
	ParentID    string    `json:"parentId,omitempty"`
	Path        string    `json:"path"`
	GlobalSlot  int64     `json:"globalSlot"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *ShelfCreatedEvent) EventType() string     { return "wms.shelf.created" }
func (e *ShelfCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// ShelfUpdatedEvent is published when a shelf is renamed or its flags change
type ShelfUpdatedEvent struct {
	ShelfID         string    `json:"shelfId"`
	WarehouseID     string    `json:"warehouseId"`
	Name            string    `json:"name"`
	Path            string    `json:"path"`
	IsSellable      bool      `json:"isSellable"`
	IsReservable    bool      `json:"isReservable"`
	AffectedShelves int       `json:"affectedShelves"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (e *ShelfUpdatedEvent) EventType() string     { return "wms.shelf.updated" }
func (e *ShelfUpdatedEvent) OccurredAt() time.Time { return e.UpdatedAt }

// ShelfMovedEvent is published when a shelf is reparented
type ShelfMovedEvent struct {
	ShelfID         string    `json:"shelfId"`
	WarehouseID     string    `json:"warehouseId"`
	OldParentID     string    `json:"oldParentId,omitempty"`
	NewParentID     string    `json:"newParentId,omitempty"`
	Path            string    `json:"path"`
	AffectedShelves int       `json:"affectedShelves"`
	MovedAt         time.Time `json:"movedAt"`
}

func (e *ShelfMovedEvent) EventType() string     { return "wms.shelf.moved" }
func (e *ShelfMovedEvent) OccurredAt() time.Time { return e.MovedAt }

// ShelfDeletedEvent is published when a shelf is deleted
type ShelfDeletedEvent struct {
	ShelfID     string    `json:"shelfId"`
	WarehouseID string    `json:"warehouseId"`
	Barcode     string    `json:"barcode"`
	DeletedAt   time.Time `json:"deletedAt"`
}

func (e *ShelfDeletedEvent) EventType() string     { return "wms.shelf.deleted" }
func (e *ShelfDeletedEvent) OccurredAt() time.Time { return e.DeletedAt }

// RouteCreatedEvent is published when orders are consolidated into a route
type RouteCreatedEvent struct {
	RouteID        string    `json:"routeId"`
	Name           string    `json:"name"`
	WarehouseID    string    `json:"warehouseId"`
	OrderIDs       []string  `json:"orderIds"`
	TotalItemCount int64     `json:"totalItemCount"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (e *RouteCreatedEvent) EventType() string     { return "wms.route.created" }
func (e *RouteCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// RouteOrderPickedEvent is published when every line of a member order is picked
type RouteOrderPickedEvent struct {
	RouteID  string    `json:"routeId"`
	OrderID  string    `json:"orderId"`
	PickedAt time.Time `json:"pickedAt"`
}

func (e *RouteOrderPickedEvent) EventType() string     { return "wms.route.order-picked" }
func (e *RouteOrderPickedEvent) OccurredAt() time.Time { return e.PickedAt }

// RoutePickedEvent is published when the whole route is picked
type RoutePickedEvent struct {
	RouteID         string    `json:"routeId"`
	PickedItemCount int64     `json:"pickedItemCount"`
	PickedAt        time.Time `json:"pickedAt"`
}

func (e *RoutePickedEvent) EventType() string     { return "wms.route.picked" }
func (e *RoutePickedEvent) OccurredAt() time.Time { return e.PickedAt }

// RoutePickingForceCompletedEvent is published when picking is completed by an administrator
type RoutePickingForceCompletedEvent struct {
	RouteID     string    `json:"routeId"`
	OrderIDs    []string  `json:"orderIds"`
	UserID      string    `json:"userId,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *RoutePickingForceCompletedEvent) EventType() string {
	return "wms.route.picking-force-completed"
}
func (e *RoutePickingForceCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// RoutePickingResetEvent is published when picking progress is reset
type RoutePickingResetEvent struct {
	RouteID           string    `json:"routeId"`
	CompensatedOrders []string  `json:"compensatedOrders"`
	UserID            string    `json:"userId,omitempty"`
	ResetAt           time.Time `json:"resetAt"`
}

func (e *RoutePickingResetEvent) EventType() string     { return "wms.route.picking-reset" }
func (e *RoutePickingResetEvent) OccurredAt() time.Time { return e.ResetAt }

// RouteLabelPrintedEvent is published on every label print
type RouteLabelPrintedEvent struct {
	RouteID    string    `json:"routeId"`
	PrintCount int       `json:"printCount"`
	UserID     string    `json:"userId,omitempty"`
	PrintedAt  time.Time `json:"printedAt"`
}

func (e *RouteLabelPrintedEvent) EventType() string     { return "wms.route.label-printed" }
func (e *RouteLabelPrintedEvent) OccurredAt() time.Time { return e.PrintedAt }

// RouteCompletedEvent is published when the last member order is packed
type RouteCompletedEvent struct {
	RouteID     string    `json:"routeId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *RouteCompletedEvent) EventType() string     { return "wms.route.completed" }
func (e *RouteCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// RouteCancelledEvent is published when a route is cancelled
type RouteCancelledEvent struct {
	RouteID        string    `json:"routeId"`
	PreviousStatus string    `json:"previousStatus"`
	ReleasedOrders []string  `json:"releasedOrders"`
	CancelledAt    time.Time `json:"cancelledAt"`
}

func (e *RouteCancelledEvent) EventType() string     { return "wms.route.cancelled" }
func (e *RouteCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// PackingSessionStartedEvent is published when a packing session opens
type PackingSessionStartedEvent struct {
	SessionID   string    `json:"sessionId"`
	RouteID     string    `json:"routeId"`
	UserID      string    `json:"userId,omitempty"`
	StationID   string    `json:"stationId,omitempty"`
	TotalOrders int64     `json:"totalOrders"`
	StartedAt   time.Time `json:"startedAt"`
}

func (e *PackingSessionStartedEvent) EventType() string     { return "wms.packing.session-started" }
func (e *PackingSessionStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// PackingOrderPackedEvent is published when an order is sealed
type PackingOrderPackedEvent struct {
	SessionID      string    `json:"sessionId"`
	RouteID        string    `json:"routeId"`
	OrderID        string    `json:"orderId"`
	Products       int       `json:"products"`
	LedgerBypassed bool      `json:"ledgerBypassed"`
	PackedAt       time.Time `json:"packedAt"`
}

func (e *PackingOrderPackedEvent) EventType() string     { return "wms.packing.order-packed" }
func (e *PackingOrderPackedEvent) OccurredAt() time.Time { return e.PackedAt }

// PackingSessionCompletedEvent is published when every order of the session is packed
type PackingSessionCompletedEvent struct {
	SessionID    string    `json:"sessionId"`
	RouteID      string    `json:"routeId"`
	PackedOrders int64     `json:"packedOrders"`
	CompletedAt  time.Time `json:"completedAt"`
}

func (e *PackingSessionCompletedEvent) EventType() string     { return "wms.packing.session-completed" }
func (e *PackingSessionCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// PackingSessionCancelledEvent is published when a session is cancelled
type PackingSessionCancelledEvent struct {
	SessionID    string    `json:"sessionId"`
	RouteID      string    `json:"routeId"`
	PackedOrders int64     `json:"packedOrders"`
	CancelledAt  time.Time `json:"cancelledAt"`
}

func (e *PackingSessionCancelledEvent) EventType() string     { return "wms.packing.session-cancelled" }
func (e *PackingSessionCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }
