package domain

import (
	"fmt"
	"sort"
	"time"
)

// RouteStatus represents the lifecycle of a route
type RouteStatus string

const (
	RouteStatusCollecting RouteStatus = "COLLECTING"
	RouteStatusReady      RouteStatus = "READY"
	RouteStatusPicked     RouteStatus = "PICKED"
	RouteStatusCompleted  RouteStatus = "COMPLETED"
	RouteStatusCancelled  RouteStatus = "CANCELLED"
)

// IsValid checks if the route status is valid
func (s RouteStatus) IsValid() bool {
	switch s {
	case RouteStatusCollecting, RouteStatusReady, RouteStatusPicked, RouteStatusCompleted, RouteStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s RouteStatus) IsTerminal() bool {
	return s == RouteStatusCompleted || s == RouteStatusCancelled
}

// PickStatus is the picking state of one member order
type PickStatus string

const (
	PickStatusPending PickStatus = "PENDING"
	PickStatusPicked  PickStatus = "PICKED"
)

// RouteNamePrefix prefixes the sequential route names
const RouteNamePrefix = "R"

// Route is the aggregate root for a batch of orders picked and packed together
type Route struct {
	ID               string        `bson:"_id" json:"id"`
	Name             string        `bson:"name" json:"name"`
	Description      string        `bson:"description" json:"description"`
	WarehouseID      string        `bson:"warehouseId" json:"warehouseId"`
	Status           RouteStatus   `bson:"status" json:"status"`
	Active           bool          `bson:"active" json:"-"`
	OrderIDs         []string      `bson:"orderIds" json:"orderIds"`
	Orders           []RouteOrder  `bson:"orders" json:"orders"`
	PickingItems     []PickingItem `bson:"pickingItems" json:"pickingItems"`
	TotalOrderCount  int64         `bson:"totalOrderCount" json:"totalOrderCount"`
	TotalItemCount   int64         `bson:"totalItemCount" json:"totalItemCount"`
	PickedItemCount  int64         `bson:"pickedItemCount" json:"pickedItemCount"`
	PackedOrderCount int64         `bson:"packedOrderCount" json:"packedOrderCount"`
	LabelPrintedAt   *time.Time    `bson:"labelPrintedAt,omitempty" json:"labelPrintedAt,omitempty"`
	LabelPrintCount  int           `bson:"labelPrintCount" json:"labelPrintCount"`
	CreatedBy        string        `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt" json:"updatedAt"`
	PickedAt         *time.Time    `bson:"pickedAt,omitempty" json:"pickedAt,omitempty"`
	CompletedAt      *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledAt      *time.Time    `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	Version          int64         `bson:"version" json:"version"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// RouteOrder is a member order and its picking and packing progress
type RouteOrder struct {
	OrderID        string           `bson:"orderId" json:"orderId"`
	OrderNumber    string           `bson:"orderNumber" json:"orderNumber"`
	Sequence       int              `bson:"sequence" json:"sequence"`
	Lines          []RouteOrderLine `bson:"lines" json:"lines"`
	PickStatus     PickStatus       `bson:"pickStatus" json:"pickStatus"`
	PickedAt       *time.Time       `bson:"pickedAt,omitempty" json:"pickedAt,omitempty"`
	PickedManually bool             `bson:"pickedManually" json:"pickedManually"`
	Packed         bool             `bson:"packed" json:"packed"`
	PackedAt       *time.Time       `bson:"packedAt,omitempty" json:"packedAt,omitempty"`
	Picks          []PickRecord     `bson:"picks,omitempty" json:"picks,omitempty"`
}

// RouteOrderLine is an order's requirement for one barcode
type RouteOrderLine struct {
	Barcode     string `bson:"barcode" json:"barcode"`
	ProductID   string `bson:"productId" json:"productId"`
	ProductName string `bson:"productName" json:"productName"`
	Quantity    int64  `bson:"quantity" json:"quantity"`
}

// PickRecord is where picked stock for an order came from and where it was staged
type PickRecord struct {
	ShelfID        string `bson:"shelfId" json:"shelfId"`
	ProductID      string `bson:"productId" json:"productId"`
	Quantity       int64  `bson:"quantity" json:"quantity"`
	StagingShelfID string `bson:"stagingShelfId" json:"stagingShelfId"`
}

// OrderPicks groups the pick records of one order
type OrderPicks struct {
	OrderID string
	Picks   []PickRecord
}

// PickingItem is the consolidated requirement for one barcode across the route
type PickingItem struct {
	Barcode        string       `bson:"barcode" json:"barcode"`
	ProductID      string       `bson:"productId" json:"productId"`
	ProductName    string       `bson:"productName" json:"productName"`
	ShelfLocation  string       `bson:"shelfLocation" json:"shelfLocation"`
	TotalQuantity  int64        `bson:"totalQuantity" json:"totalQuantity"`
	PickedQuantity int64        `bson:"pickedQuantity" json:"pickedQuantity"`
	IsComplete     bool         `bson:"isComplete" json:"isComplete"`
	Allocations    []Allocation `bson:"allocations" json:"allocations"`
}

// PickScanResult reports what one picking scan changed
type PickScanResult struct {
	Barcode         string
	Quantity        int64
	PickedQuantity  int64
	TotalQuantity   int64
	ItemComplete    bool
	Consumptions    []Consumption
	CompletedOrders []string
	RoutePicked     bool
}

// RouteName formats the n-th route name, e.g. R000001
func RouteName(n int64) string {
	return fmt.Sprintf("%s%06d", RouteNamePrefix, n)
}

// NewRoute consolidates orders into a READY route. orders must carry
// resolved product ids; locations maps product id to an informational
// shelf location for the pick list.
func NewRoute(id, name, description string, orders []*Order, locations map[string]string, createdBy string, now time.Time) (*Route, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyRoute
	}

	r := &Route{
		ID:          id,
		Name:        name,
		Description: description,
		WarehouseID: orders[0].WarehouseID,
		Status:      RouteStatusCollecting,
		Active:      true,
		OrderIDs:    make([]string, 0, len(orders)),
		Orders:      make([]RouteOrder, 0, len(orders)),
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	seen := make(map[string]struct{}, len(orders))
	productByBarcode := make(map[string]string)
	itemIndex := make(map[string]int)

	for seq, order := range orders {
		if _, dup := seen[order.ID]; dup {
			return nil, ErrDuplicateOrder
		}
		seen[order.ID] = struct{}{}
		if order.WarehouseID != r.WarehouseID {
			return nil, ErrMixedWarehouses
		}
		if !order.Status.IsFulfillable() {
			return nil, &OrderNotFulfillableError{OrderID: order.ID, Status: order.Status}
		}

		ro := RouteOrder{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Sequence:    seq + 1,
			PickStatus:  PickStatusPending,
		}
		lineIndex := make(map[string]int)
		for _, line := range order.Lines {
			if line.Quantity <= 0 {
				return nil, ErrInvalidQuantity
			}
			if known, ok := productByBarcode[line.Barcode]; ok && known != line.ProductID {
				return nil, ErrBarcodeProductMismatch
			}
			productByBarcode[line.Barcode] = line.ProductID

			if i, ok := lineIndex[line.Barcode]; ok {
				ro.Lines[i].Quantity += line.Quantity
			} else {
				lineIndex[line.Barcode] = len(ro.Lines)
				ro.Lines = append(ro.Lines, RouteOrderLine{
					Barcode:     line.Barcode,
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Quantity:    line.Quantity,
				})
			}
		}
		if len(ro.Lines) == 0 {
			return nil, &OrderNotFulfillableError{OrderID: order.ID, Status: order.Status}
		}

		for _, line := range ro.Lines {
			i, ok := itemIndex[line.Barcode]
			if !ok {
				i = len(r.PickingItems)
				itemIndex[line.Barcode] = i
				r.PickingItems = append(r.PickingItems, PickingItem{
					Barcode:       line.Barcode,
					ProductID:     line.ProductID,
					ProductName:   line.ProductName,
					ShelfLocation: locations[line.ProductID],
				})
			}
			item := &r.PickingItems[i]
			item.TotalQuantity += line.Quantity
			item.Allocations = append(item.Allocations, Allocation{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Quantity:    line.Quantity,
				Remaining:   line.Quantity,
			})
			r.TotalItemCount += line.Quantity
		}

		r.OrderIDs = append(r.OrderIDs, order.ID)
		r.Orders = append(r.Orders, ro)
	}
	r.TotalOrderCount = int64(len(r.Orders))
	r.Status = RouteStatusReady

	r.AddDomainEvent(&RouteCreatedEvent{
		RouteID:        r.ID,
		Name:           r.Name,
		WarehouseID:    r.WarehouseID,
		OrderIDs:       r.OrderIDs,
		TotalItemCount: r.TotalItemCount,
		CreatedBy:      createdBy,
		CreatedAt:      now,
	})
	return r, nil
}

// Order returns the member order with orderID, or nil
func (r *Route) Order(orderID string) *RouteOrder {
	for i := range r.Orders {
		if r.Orders[i].OrderID == orderID {
			return &r.Orders[i]
		}
	}
	return nil
}

// Item returns the picking item for barcode, or nil
func (r *Route) Item(barcode string) *PickingItem {
	for i := range r.PickingItems {
		if r.PickingItems[i].Barcode == barcode {
			return &r.PickingItems[i]
		}
	}
	return nil
}

// Scan credits quantity units of barcode to the route, distributing them
// over the member orders first-in first-out.
func (r *Route) Scan(barcode string, quantity int64, now time.Time) (*PickScanResult, error) {
	if r.Status != RouteStatusReady && r.Status != RouteStatusPicked {
		return nil, r.invalid("scan", "")
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	item := r.Item(barcode)
	if item == nil || item.IsComplete {
		return nil, &UnknownBarcodeError{RouteID: r.ID, Barcode: barcode, Complete: item != nil}
	}
	if item.PickedQuantity+quantity > item.TotalQuantity {
		return nil, &OverScanError{
			Barcode:   barcode,
			Required:  item.TotalQuantity,
			Scanned:   item.PickedQuantity,
			Attempted: quantity,
		}
	}

	updated, consumed, _ := Distribute(quantity, item.Allocations)
	item.Allocations = updated
	item.PickedQuantity += quantity
	item.IsComplete = item.PickedQuantity == item.TotalQuantity
	r.PickedItemCount += quantity
	r.UpdatedAt = now

	result := &PickScanResult{
		Barcode:        barcode,
		Quantity:       quantity,
		PickedQuantity: item.PickedQuantity,
		TotalQuantity:  item.TotalQuantity,
		ItemComplete:   item.IsComplete,
		Consumptions:   consumed,
	}

	for _, c := range consumed {
		ro := r.Order(c.OrderID)
		if ro == nil || ro.PickStatus == PickStatusPicked || !r.orderFullyPicked(c.OrderID) {
			continue
		}
		ro.PickStatus = PickStatusPicked
		ro.PickedAt = &now
		result.CompletedOrders = append(result.CompletedOrders, ro.OrderID)
		r.AddDomainEvent(&RouteOrderPickedEvent{RouteID: r.ID, OrderID: ro.OrderID, PickedAt: now})
	}

	if r.allOrdersPicked() {
		r.markPicked(now)
		result.RoutePicked = true
	}
	return result, nil
}

// RecordPicks stores where an order's picked stock was drawn from
func (r *Route) RecordPicks(orderID string, picks []PickRecord) error {
	ro := r.Order(orderID)
	if ro == nil {
		return ErrOrderNotFound
	}
	ro.Picks = append(ro.Picks, picks...)
	return nil
}

// CompleteManually force-completes every open pick without stock having
// been scanned. It returns the orders that were forced; a route that is
// already picked yields none.
func (r *Route) CompleteManually(userID string, now time.Time) ([]string, error) {
	if r.Status == RouteStatusPicked {
		return nil, nil
	}
	if r.Status != RouteStatusReady {
		return nil, r.invalid("complete picking of", "")
	}

	for i := range r.PickingItems {
		item := &r.PickingItems[i]
		for j := range item.Allocations {
			item.Allocations[j].Remaining = 0
		}
		item.PickedQuantity = item.TotalQuantity
		item.IsComplete = true
	}

	var forced []string
	for i := range r.Orders {
		ro := &r.Orders[i]
		if ro.PickStatus == PickStatusPicked {
			continue
		}
		ro.PickStatus = PickStatusPicked
		ro.PickedManually = true
		ro.PickedAt = &now
		forced = append(forced, ro.OrderID)
	}
	r.PickedItemCount = r.TotalItemCount
	r.UpdatedAt = now

	r.AddDomainEvent(&RoutePickingForceCompletedEvent{
		RouteID:     r.ID,
		OrderIDs:    forced,
		UserID:      userID,
		CompletedAt: now,
	})
	r.markPicked(now)
	return forced, nil
}

// Reset zeroes all picking progress and returns the pick records that
// must be compensated in the ledger. It is rejected once any order is packed.
func (r *Route) Reset(userID string, now time.Time) ([]OrderPicks, error) {
	if r.Status != RouteStatusReady && r.Status != RouteStatusPicked {
		return nil, r.invalid("reset picking of", "")
	}
	if r.PackedOrderCount > 0 {
		return nil, r.invalid("reset picking of", "orders of this route are already packed")
	}

	var compensate []OrderPicks
	for i := range r.Orders {
		ro := &r.Orders[i]
		if len(ro.Picks) > 0 {
			compensate = append(compensate, OrderPicks{OrderID: ro.OrderID, Picks: ro.Picks})
		}
		ro.PickStatus = PickStatusPending
		ro.PickedAt = nil
		ro.PickedManually = false
		ro.Picks = nil
	}
	for i := range r.PickingItems {
		item := &r.PickingItems[i]
		for j := range item.Allocations {
			item.Allocations[j].Remaining = item.Allocations[j].Quantity
		}
		item.PickedQuantity = 0
		item.IsComplete = false
	}
	r.PickedItemCount = 0
	r.Status = RouteStatusReady
	r.PickedAt = nil
	r.UpdatedAt = now

	compensated := make([]string, 0, len(compensate))
	for _, c := range compensate {
		compensated = append(compensated, c.OrderID)
	}
	r.AddDomainEvent(&RoutePickingResetEvent{
		RouteID:           r.ID,
		CompensatedOrders: compensated,
		UserID:            userID,
		ResetAt:           now,
	})
	return compensate, nil
}

// PrintLabel stamps the first print time and counts reprints
func (r *Route) PrintLabel(userID string, now time.Time) (reprint bool, err error) {
	if r.Status == RouteStatusCancelled {
		return false, r.invalid("print label of", "")
	}
	reprint = r.LabelPrintedAt != nil
	if !reprint {
		r.LabelPrintedAt = &now
	}
	r.LabelPrintCount++
	r.UpdatedAt = now

	r.AddDomainEvent(&RouteLabelPrintedEvent{
		RouteID:    r.ID,
		PrintCount: r.LabelPrintCount,
		UserID:     userID,
		PrintedAt:  now,
	})
	return reprint, nil
}

// Cancel moves the route to CANCELLED and returns the picks of orders
// that were picked but not packed; their staged stock must go back to
// the source shelves. Cancelling a cancelled route is a no-op.
func (r *Route) Cancel(now time.Time) (release []OrderPicks, changed bool, err error) {
	if r.Status == RouteStatusCancelled {
		return nil, false, nil
	}
	if r.Status == RouteStatusCompleted {
		return nil, false, r.invalid("cancel", "")
	}

	for _, ro := range r.Orders {
		if !ro.Packed && len(ro.Picks) > 0 {
			release = append(release, OrderPicks{OrderID: ro.OrderID, Picks: ro.Picks})
		}
	}

	previous := r.Status
	r.Status = RouteStatusCancelled
	r.Active = false
	r.CancelledAt = &now
	r.UpdatedAt = now

	released := make([]string, 0, len(release))
	for _, op := range release {
		released = append(released, op.OrderID)
	}
	r.AddDomainEvent(&RouteCancelledEvent{
		RouteID:        r.ID,
		PreviousStatus: string(previous),
		ReleasedOrders: released,
		CancelledAt:    now,
	})
	return release, true, nil
}

// EnsurePackable fails unless the route is fully picked
func (r *Route) EnsurePackable() error {
	if r.Status != RouteStatusPicked {
		return r.invalid("start packing of", "route must be fully picked")
	}
	return nil
}

// UnpackedOrders returns the orders not yet packed, by sequence
func (r *Route) UnpackedOrders() []RouteOrder {
	out := make([]RouteOrder, 0, len(r.Orders))
	for _, ro := range r.Orders {
		if !ro.Packed {
			out = append(out, ro)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// MarkOrderPacked flags a member order packed and completes the route
// once every order is packed. Packing an already packed order is a no-op.
func (r *Route) MarkOrderPacked(orderID string, now time.Time) (routeCompleted bool, err error) {
	ro := r.Order(orderID)
	if ro == nil {
		return false, ErrOrderNotFound
	}
	if ro.Packed {
		return false, nil
	}
	if r.Status != RouteStatusPicked {
		return false, r.invalid("pack an order of", "")
	}

	ro.Packed = true
	ro.PackedAt = &now
	r.PackedOrderCount++
	r.UpdatedAt = now

	if r.PackedOrderCount == r.TotalOrderCount {
		r.Status = RouteStatusCompleted
		r.Active = false
		r.CompletedAt = &now
		r.AddDomainEvent(&RouteCompletedEvent{RouteID: r.ID, CompletedAt: now})
		return true, nil
	}
	return false, nil
}

// StagedStock sums an order's pick records per (staging shelf, product)
func (r *Route) StagedStock(orderID string) []PickRecord {
	ro := r.Order(orderID)
	if ro == nil {
		return nil
	}
	type key struct{ shelf, product string }
	index := make(map[key]int)
	var out []PickRecord
	for _, p := range ro.Picks {
		k := key{p.StagingShelfID, p.ProductID}
		if i, ok := index[k]; ok {
			out[i].Quantity += p.Quantity
			continue
		}
		index[k] = len(out)
		out = append(out, PickRecord{ShelfID: p.StagingShelfID, ProductID: p.ProductID, Quantity: p.Quantity, StagingShelfID: p.StagingShelfID})
	}
	return out
}

// ProductDemand sums an order's required quantity per product, in line order
func (ro *RouteOrder) ProductDemand() ([]string, map[string]int64) {
	var order []string
	demand := make(map[string]int64)
	for _, line := range ro.Lines {
		if _, ok := demand[line.ProductID]; !ok {
			order = append(order, line.ProductID)
		}
		demand[line.ProductID] += line.Quantity
	}
	return order, demand
}

func (r *Route) orderFullyPicked(orderID string) bool {
	for _, item := range r.PickingItems {
		for _, a := range item.Allocations {
			if a.OrderID == orderID && a.Remaining > 0 {
				return false
			}
		}
	}
	return true
}

func (r *Route) allOrdersPicked() bool {
	for _, ro := range r.Orders {
		if ro.PickStatus != PickStatusPicked {
			return false
		}
	}
	return true
}

func (r *Route) markPicked(now time.Time) {
	r.Status = RouteStatusPicked
	r.PickedAt = &now
	r.AddDomainEvent(&RoutePickedEvent{RouteID: r.ID, PickedItemCount: r.PickedItemCount, PickedAt: now})
}

func (r *Route) invalid(action, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{
		Entity: "route",
		ID:     r.ID,
		From:   string(r.Status),
		Action: action,
		Reason: reason,
	}
}

// AddDomainEvent adds a domain event
func (r *Route) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *Route) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (r *Route) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
