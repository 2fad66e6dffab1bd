package domain

import (
	"strings"
	"time"
)

// MovementType is the business reason of a ledger row
type MovementType string

const (
	MovementPicking    MovementType = "PICKING"
	MovementPackingIn  MovementType = "PACKING_IN"
	MovementPackingOut MovementType = "PACKING_OUT"
	MovementReceiving  MovementType = "RECEIVING"
	MovementTransfer   MovementType = "TRANSFER"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReturn     MovementType = "RETURN"
	MovementCancel     MovementType = "CANCEL"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementPicking, MovementPackingIn, MovementPackingOut, MovementReceiving,
		MovementTransfer, MovementAdjustment, MovementReturn, MovementCancel:
		return true
	default:
		return false
	}
}

// IsPaired reports whether the type is only written as an OUT/IN pair.
// TRANSFER rows come from the transfer flow, never one at a time.
func (t MovementType) IsPaired() bool {
	return t == MovementTransfer
}

// Direction is the sign of a ledger row
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Signed returns quantity with the direction's sign applied
func (d Direction) Signed(quantity int64) int64 {
	if d == DirectionOut {
		return -quantity
	}
	return quantity
}

// Apply computes the level after moving quantity in this direction.
// An OUT that would go below zero fails with InsufficientStockError.
func (d Direction) Apply(shelfID, productID string, before, quantity int64) (int64, error) {
	after := before + d.Signed(quantity)
	if after < 0 {
		return before, &InsufficientStockError{
			ShelfID:   shelfID,
			ProductID: productID,
			Requested: quantity,
			Available: before,
		}
	}
	return after, nil
}

// StockMovement is an immutable ledger row
type StockMovement struct {
	ID              string       `bson:"_id" json:"id"`
	Sequence        int64        `bson:"seq" json:"-"`
	ShelfID         string       `bson:"shelfId" json:"shelfId"`
	ProductID       string       `bson:"productId" json:"productId"`
	Type            MovementType `bson:"type" json:"type"`
	Direction       Direction    `bson:"direction" json:"direction"`
	Quantity        int64        `bson:"quantity" json:"quantity"`
	QuantityBefore  int64        `bson:"quantityBefore" json:"quantityBefore"`
	QuantityAfter   int64        `bson:"quantityAfter" json:"quantityAfter"`
	OrderID         string       `bson:"orderId,omitempty" json:"orderId,omitempty"`
	RouteID         string       `bson:"routeId,omitempty" json:"routeId,omitempty"`
	SourceShelfID   string       `bson:"sourceShelfId,omitempty" json:"sourceShelfId,omitempty"`
	TargetShelfID   string       `bson:"targetShelfId,omitempty" json:"targetShelfId,omitempty"`
	ReferenceNumber string       `bson:"referenceNumber,omitempty" json:"referenceNumber,omitempty"`
	Notes           string       `bson:"notes,omitempty" json:"notes,omitempty"`
	UserID          string       `bson:"userId,omitempty" json:"userId,omitempty"`
	CreatedAt       time.Time    `bson:"createdAt" json:"createdAt"`
}

// Signed returns the movement's contribution to the level
func (m *StockMovement) Signed() int64 {
	return m.Direction.Signed(m.Quantity)
}

// MovementRequest asks the ledger to record one movement
type MovementRequest struct {
	ShelfID         string
	ProductID       string
	Type            MovementType
	Direction       Direction
	Quantity        int64
	OrderID         string
	RouteID         string
	SourceShelfID   string
	TargetShelfID   string
	ReferenceNumber string
	Notes           string
	UserID          string
}

// Validate checks the request without touching storage
func (r MovementRequest) Validate() error {
	if strings.TrimSpace(r.ShelfID) == "" {
		return ErrShelfNotFound
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return ErrProductNotFound
	}
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !r.Type.IsValid() {
		return ErrInvalidMovementType
	}
	if !r.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if r.Type != MovementTransfer && (r.SourceShelfID != "" || r.TargetShelfID != "") {
		return ErrTransferFieldsMisused
	}
	return nil
}

// NewStockMovement builds the ledger row for a validated request. The
// before and after snapshots are filled in by the store that applies it.
func NewStockMovement(id string, seq int64, req MovementRequest, now time.Time) *StockMovement {
	return &StockMovement{
		ID:              id,
		Sequence:        seq,
		ShelfID:         req.ShelfID,
		ProductID:       req.ProductID,
		Type:            req.Type,
		Direction:       req.Direction,
		Quantity:        req.Quantity,
		OrderID:         req.OrderID,
		RouteID:         req.RouteID,
		SourceShelfID:   req.SourceShelfID,
		TargetShelfID:   req.TargetShelfID,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		UserID:          req.UserID,
		CreatedAt:       now,
	}
}

// RecordedEvent describes the movement for the outbox
func (m *StockMovement) RecordedEvent() *StockMovementRecordedEvent {
	return &StockMovementRecordedEvent{
		MovementID:      m.ID,
		ShelfID:         m.ShelfID,
		ProductID:       m.ProductID,
		Type:            string(m.Type),
		Direction:       string(m.Direction),
		Quantity:        m.Quantity,
		QuantityBefore:  m.QuantityBefore,
		QuantityAfter:   m.QuantityAfter,
		OrderID:         m.OrderID,
		RouteID:         m.RouteID,
		SourceShelfID:   m.SourceShelfID,
		TargetShelfID:   m.TargetShelfID,
		ReferenceNumber: m.ReferenceNumber,
		UserID:          m.UserID,
		RecordedAt:      m.CreatedAt,
	}
}

// StockLevel is the materialized quantity of one product on one shelf
type StockLevel struct {
	ShelfID   string    `bson:"shelfId" json:"shelfId"`
	ProductID string    `bson:"productId" json:"productId"`
	Quantity  int64     `bson:"quantity" json:"quantity"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// MovementFilter selects ledger rows for the history query
type MovementFilter struct {
	ShelfID   string
	ProductID string
	OrderID   string
	RouteID   string
	Type      MovementType
	From      *time.Time
	To        *time.Time
	Offset    int64
	Limit     int64
}

// Reconciliation compares the ledger sum with the materialized level
type Reconciliation struct {
	ShelfID       string `json:"shelfId"`
	ProductID     string `json:"productId"`
	LedgerSum     int64  `json:"ledgerSum"`
	Materialized  int64  `json:"materialized"`
	MovementCount int64  `json:"movementCount"`
	Consistent    bool   `json:"consistent"`
}

// NewReconciliation builds a reconciliation result
func NewReconciliation(shelfID, productID string, ledgerSum, materialized, count int64) *Reconciliation {
	return &Reconciliation{
		ShelfID:       shelfID,
		ProductID:     productID,
		LedgerSum:     ledgerSum,
		Materialized:  materialized,
		MovementCount: count,
		Consistent:    ledgerSum == materialized,
	}
}
