package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle of a packing session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// PackingSession is the aggregate root for packing the orders of one route
type PackingSession struct {
	ID             string             `bson:"_id" json:"id"`
	RouteID        string             `bson:"routeId" json:"routeId"`
	WarehouseID    string             `bson:"warehouseId" json:"warehouseId"`
	UserID         string             `bson:"userId" json:"userId"`
	StationID      string             `bson:"stationId,omitempty" json:"stationId,omitempty"`
	Status         SessionStatus      `bson:"status" json:"status"`
	CurrentOrderID string             `bson:"currentOrderId" json:"currentOrderId"`
	OrderIDs       []string           `bson:"orderIds" json:"orderIds"`
	PackedOrderIDs []string           `bson:"packedOrderIds" json:"packedOrderIds"`
	Items          []PackingOrderItem `bson:"items" json:"items"`
	TotalOrders    int64              `bson:"totalOrders" json:"totalOrders"`
	PackedOrders   int64              `bson:"packedOrders" json:"packedOrders"`
	StartedAt      time.Time          `bson:"startedAt" json:"startedAt"`
	CompletedAt    *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt    *time.Time         `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
	Version        int64              `bson:"version" json:"version"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// PackingOrderItem is one (order, barcode) line to verify
type PackingOrderItem struct {
	ID               string     `bson:"id" json:"id"`
	SessionID        string     `bson:"sessionId" json:"sessionId"`
	OrderID          string     `bson:"orderId" json:"orderId"`
	OrderNumber      string     `bson:"orderNumber" json:"orderNumber"`
	Barcode          string     `bson:"barcode" json:"barcode"`
	ProductID        string     `bson:"productId" json:"productId"`
	ProductName      string     `bson:"productName" json:"productName"`
	RequiredQuantity int64      `bson:"requiredQuantity" json:"requiredQuantity"`
	ScannedQuantity  int64      `bson:"scannedQuantity" json:"scannedQuantity"`
	IsComplete       bool       `bson:"isComplete" json:"isComplete"`
	ScannedAt        *time.Time `bson:"scannedAt,omitempty" json:"scannedAt,omitempty"`
	Sequence         int        `bson:"sequence" json:"sequence"`
}

// PackScanResult reports what one packing scan changed
type PackScanResult struct {
	OrderID       string
	Item          PackingOrderItem
	OrderComplete bool
}

// NewPackingSession opens a session over the route's unpacked orders.
// Orders packed by an earlier, cancelled session are not materialized again.
func NewPackingSession(id string, route *Route, userID, stationID string, now time.Time) (*PackingSession, error) {
	if err := route.EnsurePackable(); err != nil {
		return nil, err
	}

	s := &PackingSession{
		ID:           id,
		RouteID:      route.ID,
		WarehouseID:  route.WarehouseID,
		UserID:       userID,
		StationID:    stationID,
		Status:       SessionStatusActive,
		TotalOrders:  route.TotalOrderCount,
		PackedOrders: route.PackedOrderCount,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	for _, ro := range route.Orders {
		if ro.Packed {
			s.PackedOrderIDs = append(s.PackedOrderIDs, ro.OrderID)
		}
	}

	sequence := 0
	for _, ro := range route.UnpackedOrders() {
		s.OrderIDs = append(s.OrderIDs, ro.OrderID)
		for _, line := range ro.Lines {
			sequence++
			s.Items = append(s.Items, PackingOrderItem{
				ID:               uuid.NewString(),
				SessionID:        id,
				OrderID:          ro.OrderID,
				OrderNumber:      ro.OrderNumber,
				Barcode:          line.Barcode,
				ProductID:        line.ProductID,
				ProductName:      line.ProductName,
				RequiredQuantity: line.Quantity,
				Sequence:         sequence,
			})
		}
	}
	if len(s.OrderIDs) > 0 {
		s.CurrentOrderID = s.OrderIDs[0]
	}

	s.AddDomainEvent(&PackingSessionStartedEvent{
		SessionID:   s.ID,
		RouteID:     s.RouteID,
		UserID:      userID,
		StationID:   stationID,
		TotalOrders: s.TotalOrders,
		StartedAt:   now,
	})
	return s, nil
}

// OrderItems returns the lines of one order, by sequence
func (s *PackingSession) OrderItems(orderID string) []PackingOrderItem {
	var out []PackingOrderItem
	for _, item := range s.Items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out
}

// Outstanding maps barcode to the quantity still to scan for an order
func (s *PackingSession) Outstanding(orderID string) map[string]int64 {
	out := make(map[string]int64)
	for _, item := range s.Items {
		if item.OrderID == orderID && !item.IsComplete {
			out[item.Barcode] += item.RequiredQuantity - item.ScannedQuantity
		}
	}
	return out
}

// IsOrderPacked reports whether orderID was already completed
func (s *PackingSession) IsOrderPacked(orderID string) bool {
	for _, id := range s.PackedOrderIDs {
		if id == orderID {
			return true
		}
	}
	return false
}

func (s *PackingSession) hasOrder(orderID string) bool {
	for _, id := range s.OrderIDs {
		if id == orderID {
			return true
		}
	}
	return false
}

// Scan verifies one unit of barcode against the current order
func (s *PackingSession) Scan(barcode string, now time.Time) (*PackScanResult, error) {
	if s.Status != SessionStatusActive {
		return nil, s.invalid("scan in", "")
	}

	idx := -1
	for i := range s.Items {
		item := &s.Items[i]
		if item.OrderID != s.CurrentOrderID || item.Barcode != barcode {
			continue
		}
		idx = i
		if !item.IsComplete {
			break
		}
	}
	if idx < 0 {
		return nil, &BarcodeNotInOrderError{SessionID: s.ID, OrderID: s.CurrentOrderID, Barcode: barcode}
	}

	item := &s.Items[idx]
	if item.ScannedQuantity+1 > item.RequiredQuantity {
		return nil, &OverScanError{
			Barcode:   barcode,
			OrderID:   item.OrderID,
			Required:  item.RequiredQuantity,
			Scanned:   item.ScannedQuantity,
			Attempted: 1,
		}
	}

	item.ScannedQuantity++
	item.ScannedAt = &now
	item.IsComplete = item.ScannedQuantity == item.RequiredQuantity
	s.UpdatedAt = now

	return &PackScanResult{
		OrderID:       item.OrderID,
		Item:          *item,
		OrderComplete: len(s.Outstanding(item.OrderID)) == 0,
	}, nil
}

// CompleteOrder seals an order whose lines are all scanned and advances to
// the next unpacked order, completing the session when none is left.
// Completing an order twice is a no-op that reports alreadyPacked.
func (s *PackingSession) CompleteOrder(orderID string, now time.Time) (alreadyPacked bool, err error) {
	if s.IsOrderPacked(orderID) {
		return true, nil
	}
	if s.Status != SessionStatusActive {
		return false, s.invalid("complete an order in", "")
	}
	if !s.hasOrder(orderID) {
		return false, ErrOrderNotInSession
	}
	if outstanding := s.Outstanding(orderID); len(outstanding) > 0 {
		return false, &OrderIncompleteError{OrderID: orderID, Outstanding: outstanding}
	}

	s.PackedOrderIDs = append(s.PackedOrderIDs, orderID)
	s.PackedOrders++
	s.UpdatedAt = now

	s.CurrentOrderID = ""
	for _, id := range s.OrderIDs {
		if !s.IsOrderPacked(id) {
			s.CurrentOrderID = id
			break
		}
	}
	if s.CurrentOrderID == "" {
		s.Status = SessionStatusCompleted
		s.CompletedAt = &now
		s.AddDomainEvent(&PackingSessionCompletedEvent{
			SessionID:    s.ID,
			RouteID:      s.RouteID,
			PackedOrders: s.PackedOrders,
			CompletedAt:  now,
		})
	}
	return false, nil
}

// Cancel ends an active session. Cancelling a cancelled session is a no-op.
func (s *PackingSession) Cancel(now time.Time) (changed bool, err error) {
	switch s.Status {
	case SessionStatusCancelled:
		return false, nil
	case SessionStatusCompleted:
		return false, s.invalid("cancel", "")
	}

	s.Status = SessionStatusCancelled
	s.CancelledAt = &now
	s.UpdatedAt = now
	s.AddDomainEvent(&PackingSessionCancelledEvent{
		SessionID:    s.ID,
		RouteID:      s.RouteID,
		PackedOrders: s.PackedOrders,
		CancelledAt:  now,
	})
	return true, nil
}

func (s *PackingSession) invalid(action, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{
		Entity: "packing session",
		ID:     s.ID,
		From:   string(s.Status),
		Action: action,
		Reason: reason,
	}
}

// AddDomainEvent adds a domain event
func (s *PackingSession) AddDomainEvent(event DomainEvent) {
	s.DomainEvents = append(s.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (s *PackingSession) ClearDomainEvents() {
	s.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (s *PackingSession) GetDomainEvents() []DomainEvent {
	return s.DomainEvents
}
