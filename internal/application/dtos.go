package application

import "time"

// StockMovementDTO represents a ledger row in responses
type StockMovementDTO struct {
	ID              string    `json:"id"`
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
	Notes           string    `json:"notes,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// MovementPage is one page of ledger history
type MovementPage struct {
	Movements []StockMovementDTO
	Page      int64
	PageSize  int64
	Total     int64
}

// StockLevelDTO represents the level of one product on one shelf
type StockLevelDTO struct {
	ShelfID   string `json:"shelfId"`
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// ShelfStockDTO lists the products held directly on a shelf
type ShelfStockDTO struct {
	ShelfID string          `json:"shelfId"`
	Levels  []StockLevelDTO `json:"levels"`
	Total   int64           `json:"total"`
}

// ShelfTotalStockDTO is the stock held by a shelf and all its descendants
type ShelfTotalStockDTO struct {
	ShelfID string `json:"shelfId"`
	Total   int64  `json:"total"`
	Cached  bool   `json:"cached"`
}

// ReconciliationDTO compares the ledger sum with the materialized level
type ReconciliationDTO struct {
	ShelfID       string `json:"shelfId"`
	ProductID     string `json:"productId"`
	LedgerSum     int64  `json:"ledgerSum"`
	Materialized  int64  `json:"materialized"`
	MovementCount int64  `json:"movementCount"`
	Consistent    bool   `json:"consistent"`
}

// TransferDTO represents a completed transfer
type TransferDTO struct {
	ReferenceNumber string           `json:"referenceNumber"`
	ProductID       string           `json:"productId"`
	Quantity        int64            `json:"quantity"`
	Out             StockMovementDTO `json:"out"`
	In              StockMovementDTO `json:"in"`
}

// ShelfDTO represents a shelf in responses
type ShelfDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Barcode      string    `json:"barcode"`
	Type         string    `json:"type"`
	WarehouseID  string    `json:"warehouseId"`
	ParentID     *string   `json:"parentId"`
	Path         string    `json:"path"`
	GlobalSlot   int64     `json:"globalSlot"`
	IsSellable   bool      `json:"isSellable"`
	IsReservable bool      `json:"isReservable"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ShelfNodeDTO is a shelf with its nested children
type ShelfNodeDTO struct {
	ShelfDTO
	Children []ShelfNodeDTO `json:"children"`
}

// RouteDTO represents a route with its member orders and pick list
type RouteDTO struct {
	RouteSummaryDTO
	Orders       []RouteOrderDTO  `json:"orders"`
	PickingItems []PickingItemDTO `json:"pickingItems"`
}

// RouteSummaryDTO represents a route in listings
type RouteSummaryDTO struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	WarehouseID      string     `json:"warehouseId"`
	Status           string     `json:"status"`
	TotalOrderCount  int64      `json:"totalOrderCount"`
	TotalItemCount   int64      `json:"totalItemCount"`
	PickedItemCount  int64      `json:"pickedItemCount"`
	PackedOrderCount int64      `json:"packedOrderCount"`
	LabelPrintedAt   *time.Time `json:"labelPrintedAt,omitempty"`
	LabelPrintCount  int        `json:"labelPrintCount"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	PickedAt         *time.Time `json:"pickedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CancelledAt      *time.Time `json:"cancelledAt,omitempty"`
}

// RouteOrderDTO represents a member order of a route
type RouteOrderDTO struct {
	OrderID        string              `json:"orderId"`
	OrderNumber    string              `json:"orderNumber"`
	Sequence       int                 `json:"sequence"`
	PickStatus     string              `json:"pickStatus"`
	PickedManually bool                `json:"pickedManually"`
	PickedAt       *time.Time          `json:"pickedAt,omitempty"`
	Packed         bool                `json:"packed"`
	PackedAt       *time.Time          `json:"packedAt,omitempty"`
	Lines          []RouteOrderLineDTO `json:"lines"`
}

// RouteOrderLineDTO represents an order's requirement for one barcode
type RouteOrderLineDTO struct {
	Barcode     string `json:"barcode"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
}

// PickingItemDTO represents one consolidated pick-list line
type PickingItemDTO struct {
	Barcode        string          `json:"barcode"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName"`
	ShelfLocation  string          `json:"shelfLocation"`
	TotalQuantity  int64           `json:"totalQuantity"`
	PickedQuantity int64           `json:"pickedQuantity"`
	IsComplete     bool            `json:"isComplete"`
	Orders         []AllocationDTO `json:"orders"`
}

// AllocationDTO is one order's contribution to a pick-list line
type AllocationDTO struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Quantity    int64  `json:"quantity"`
	Remaining   int64  `json:"remaining"`
}

// CandidateOrderDTO represents an order that may join a new route
type CandidateOrderDTO struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	WarehouseID string    `json:"warehouseId"`
	Status      string    `json:"status"`
	LineCount   int       `json:"lineCount"`
	ItemCount   int64     `json:"itemCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RouteLabelDTO carries what a route label prints
type RouteLabelDTO struct {
	RouteID        string    `json:"routeId"`
	Name           string    `json:"name"`
	Barcode        string    `json:"barcode"`
	OrderCount     int64     `json:"orderCount"`
	ItemCount      int64     `json:"itemCount"`
	Reprint        bool      `json:"reprint"`
	PrintCount     int       `json:"printCount"`
	FirstPrintedAt time.Time `json:"firstPrintedAt"`
}

// PickingProgressDTO represents picking progress of a route
type PickingProgressDTO struct {
	RouteID          string           `json:"routeId"`
	Status           string           `json:"status"`
	TotalItemCount   int64            `json:"totalItemCount"`
	PickedItemCount  int64            `json:"pickedItemCount"`
	TotalOrderCount  int64            `json:"totalOrderCount"`
	PickedOrderCount int64            `json:"pickedOrderCount"`
	Items            []PickingItemDTO `json:"items"`
}

// ConsumptionDTO is the part of a scan credited to one order
type ConsumptionDTO struct {
	OrderID  string `json:"orderId"`
	Quantity int64  `json:"quantity"`
}

// PickScanResultDTO reports the effect of one picking scan
type PickScanResultDTO struct {
	RouteID         string           `json:"routeId"`
	RouteStatus     string           `json:"routeStatus"`
	Barcode         string           `json:"barcode"`
	Quantity        int64            `json:"quantity"`
	PickedQuantity  int64            `json:"pickedQuantity"`
	TotalQuantity   int64            `json:"totalQuantity"`
	ItemComplete    bool             `json:"itemComplete"`
	Consumptions    []ConsumptionDTO `json:"consumptions"`
	CompletedOrders []string         `json:"completedOrders"`
	RoutePicked     bool             `json:"routePicked"`
}

// BulkScanFailureDTO describes one rejected scan of a batch
type BulkScanFailureDTO struct {
	Index   int               `json:"index"`
	Barcode string            `json:"barcode"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// BulkScanResultDTO summarizes a bulk scan
type BulkScanResultDTO struct {
	RouteID  string               `json:"routeId"`
	Scanned  int                  `json:"scanned"`
	Failed   int                  `json:"failed"`
	Failures []BulkScanFailureDTO `json:"failures"`
	Progress *PickingProgressDTO  `json:"progress,omitempty"`
}

// PackingSessionDTO represents a packing session
type PackingSessionDTO struct {
	ID             string           `json:"id"`
	RouteID        string           `json:"routeId"`
	WarehouseID    string           `json:"warehouseId"`
	UserID         string           `json:"userId"`
	StationID      string           `json:"stationId,omitempty"`
	Status         string           `json:"status"`
	CurrentOrderID string           `json:"currentOrderId"`
	TotalOrders    int64            `json:"totalOrders"`
	PackedOrders   int64            `json:"packedOrders"`
	StartedAt      time.Time        `json:"startedAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	CancelledAt    *time.Time       `json:"cancelledAt,omitempty"`
	Items          []PackingItemDTO `json:"items"`
}

// PackingItemDTO represents one (order, barcode) packing line
type PackingItemDTO struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"orderId"`
	OrderNumber      string     `json:"orderNumber"`
	Barcode          string     `json:"barcode"`
	ProductID        string     `json:"productId"`
	ProductName      string     `json:"productName"`
	RequiredQuantity int64      `json:"requiredQuantity"`
	ScannedQuantity  int64      `json:"scannedQuantity"`
	IsComplete       bool       `json:"isComplete"`
	ScannedAt        *time.Time `json:"scannedAt,omitempty"`
	Sequence         int        `json:"sequence"`
}

// CurrentOrderDTO is the order being packed and what is still missing
type CurrentOrderDTO struct {
	SessionID     string           `json:"sessionId"`
	SessionStatus string           `json:"sessionStatus"`
	OrderID       string           `json:"orderId"`
	OrderNumber   string           `json:"orderNumber"`
	Items         []PackingItemDTO `json:"items"`
	Outstanding   map[string]int64 `json:"outstanding"`
	Complete      bool             `json:"complete"`
}

// PackScanResultDTO reports the effect of one packing scan
type PackScanResultDTO struct {
	SessionID     string         `json:"sessionId"`
	OrderID       string         `json:"orderId"`
	Item          PackingItemDTO `json:"item"`
	OrderComplete bool           `json:"orderComplete"`
}

// CompleteOrderResultDTO reports the effect of completing one packed order
type CompleteOrderResultDTO struct {
	SessionID      string             `json:"sessionId"`
	OrderID        string             `json:"orderId"`
	AlreadyPacked  bool               `json:"alreadyPacked"`
	SessionStatus  string             `json:"sessionStatus"`
	NextOrderID    string             `json:"nextOrderId"`
	RouteCompleted bool               `json:"routeCompleted"`
	LedgerBypassed bool               `json:"ledgerBypassed"`
	Movements      []StockMovementDTO `json:"movements"`
}
