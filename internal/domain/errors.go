package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors
var (
	ErrInvalidQuantity           = errors.New("quantity must be a positive integer")
	ErrSameShelf                 = errors.New("source and target shelf must differ")
	ErrShelfNotFound             = errors.New("shelf not found")
	ErrProductNotFound           = errors.New("product not found")
	ErrOrderNotFound             = errors.New("order not found")
	ErrRouteNotFound             = errors.New("route not found")
	ErrSessionNotFound           = errors.New("packing session not found")
	ErrOrderNotInSession         = errors.New("order is not part of this packing session")
	ErrConcurrentModification    = errors.New("document was modified concurrently")
	ErrEmptyRoute                = errors.New("a route needs at least one order")
	ErrDuplicateOrder            = errors.New("order listed more than once")
	ErrMixedWarehouses           = errors.New("all orders of a route must belong to the same warehouse")
	ErrPackingShelfNotConfigured = errors.New("warehouse has no PACKING shelf to stage picked stock")
	ErrDuplicateShelfBarcode     = errors.New("shelf barcode already in use")
	ErrParentInOtherWarehouse    = errors.New("parent shelf belongs to another warehouse")
	ErrInvalidShelfType          = errors.New("invalid shelf type")
	ErrInvalidShelfName          = errors.New("shelf name must not be empty")
	ErrInvalidMovementType       = errors.New("invalid movement type")
	ErrInvalidDirection          = errors.New("invalid movement direction")
	ErrTransferFieldsMisused     = errors.New("sourceShelfId and targetShelfId are only set on TRANSFER movements")
	ErrBarcodeProductMismatch    = errors.New("one barcode resolves to several products")
	ErrActiveRouteMembership     = errors.New("an order is already a member of an active route")
	ErrActiveSessionExists       = errors.New("route already has an active packing session")
)

// InsufficientStockError rejects an OUT movement that would drive a level negative.
// ShelfID is empty when the shortage was computed across every candidate shelf.
type InsufficientStockError struct {
	ShelfID   string
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	if e.ShelfID == "" {
		return fmt.Sprintf("insufficient stock of product %s: requested %d, available %d across pick shelves",
			e.ProductID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock of product %s on shelf %s: requested %d, available %d",
		e.ProductID, e.ShelfID, e.Requested, e.Available)
}

// OverScanError rejects a scan beyond the required quantity.
type OverScanError struct {
	Barcode   string
	OrderID   string
	Required  int64
	Scanned   int64
	Attempted int64
}

func (e *OverScanError) Error() string {
	return fmt.Sprintf("over-scan of barcode %s: required %d, already scanned %d, attempted %d more",
		e.Barcode, e.Required, e.Scanned, e.Attempted)
}

// UnknownBarcodeError is returned when a route has no open picking item for a barcode.
type UnknownBarcodeError struct {
	RouteID  string
	Barcode  string
	Complete bool
}

func (e *UnknownBarcodeError) Error() string {
	if e.Complete {
		return fmt.Sprintf("barcode %s is already fully picked on route %s", e.Barcode, e.RouteID)
	}
	return fmt.Sprintf("barcode %s is not part of route %s", e.Barcode, e.RouteID)
}

// BarcodeNotInOrderError is returned when a packing scan does not match the current order.
type BarcodeNotInOrderError struct {
	SessionID string
	OrderID   string
	Barcode   string
}

func (e *BarcodeNotInOrderError) Error() string {
	return fmt.Sprintf("barcode %s is not required by order %s", e.Barcode, e.OrderID)
}

// ShelfNotEmptyError rejects deleting a shelf whose subtree holds stock.
type ShelfNotEmptyError struct {
	ShelfID  string
	Quantity int64
}

func (e *ShelfNotEmptyError) Error() string {
	return fmt.Sprintf("shelf %s still holds %d units in its subtree", e.ShelfID, e.Quantity)
}

// ShelfHasChildrenError rejects deleting a shelf that still has child shelves.
type ShelfHasChildrenError struct {
	ShelfID  string
	Children int64
}

func (e *ShelfHasChildrenError) Error() string {
	return fmt.Sprintf("shelf %s has %d child shelves; delete them first", e.ShelfID, e.Children)
}

// ShelfInUseError rejects deleting a shelf that pick records of an active
// route still point at; cancelling or resetting that route returns stock to it.
type ShelfInUseError struct {
	ShelfID string
	RouteID string
}

func (e *ShelfInUseError) Error() string {
	return fmt.Sprintf("shelf %s holds picks of active route %s; complete or cancel the route first", e.ShelfID, e.RouteID)
}

// CyclicReparentError rejects moving a shelf under itself or one of its descendants.
type CyclicReparentError struct {
	ShelfID     string
	NewParentID string
}

func (e *CyclicReparentError) Error() string {
	return fmt.Sprintf("cannot move shelf %s under %s: target is the shelf itself or one of its descendants",
		e.ShelfID, e.NewParentID)
}

// InvalidTransitionError reports an operation not allowed in the entity's current state.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	Action string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// OrderIncompleteError rejects completing an order that still has unscanned lines.
// Outstanding maps barcode to the quantity still missing.
type OrderIncompleteError struct {
	OrderID     string
	Outstanding map[string]int64
}

func (e *OrderIncompleteError) Error() string {
	barcodes := make([]string, 0, len(e.Outstanding))
	for b := range e.Outstanding {
		barcodes = append(barcodes, b)
	}
	sort.Strings(barcodes)
	parts := make([]string, 0, len(barcodes))
	for _, b := range barcodes {
		parts = append(parts, fmt.Sprintf("%s x%d", b, e.Outstanding[b]))
	}
	return fmt.Sprintf("order %s is not fully scanned, missing %s", e.OrderID, strings.Join(parts, ", "))
}

// OrderNotFulfillableError rejects routing an order in a status that cannot be picked.
type OrderNotFulfillableError struct {
	OrderID string
	Status  OrderStatus
}

func (e *OrderNotFulfillableError) Error() string {
	return fmt.Sprintf("order %s cannot be routed in status %s", e.OrderID, e.Status)
}

// OrderInActiveRouteError rejects routing an order that already belongs to an active route.
type OrderInActiveRouteError struct {
	OrderID string
	RouteID string
}

func (e *OrderInActiveRouteError) Error() string {
	return fmt.Sprintf("order %s is already a member of active route %s", e.OrderID, e.RouteID)
}

// SessionActiveError is returned when a route already has an ACTIVE packing session.
type SessionActiveError struct {
	RouteID   string
	SessionID string
}

func (e *SessionActiveError) Error() string {
	return fmt.Sprintf("route %s already has active packing session %s", e.RouteID, e.SessionID)
}
