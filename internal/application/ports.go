package application

import (
	"context"
	"io"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
)

// Transactor runs fn in one storage transaction. Every repository call made
// with the ctx handed to fn joins it. fn may run more than once when the
// storage layer retries a transient conflict.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventSink appends domain events to the outbox within the caller's transaction
type EventSink interface {
	Append(ctx context.Context, events ...domain.DomainEvent) error
}

// OrderFilter narrows the candidate order query
type OrderFilter struct {
	WarehouseID string
	Search      string
	Limit       int
}

// OrderStore is the external owner of orders
type OrderStore interface {
	// GetOrders returns the orders that exist among ids, in no particular order
	GetOrders(ctx context.Context, ids []string) ([]*domain.Order, error)
	ListFulfillable(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// ConsumableInventory debits packaging materials. The key makes retries safe.
type ConsumableInventory interface {
	Debit(ctx context.Context, idempotencyKey, orderID string, usage []domain.ConsumableUsage) error
}

// ProductCatalog resolves products. Lookups return (nil, nil) for unknown products.
type ProductCatalog interface {
	ResolveBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// StockCache caches subtree stock totals. Implementations must tolerate
// being unavailable; callers fall back to computing the total.
//
// GetSubtreeTotal also returns the shelf's generation. SetSubtreeTotal stores
// the total only while that generation is current, and Invalidate advances
// it, so a total summed before a concurrent ledger commit is never cached.
type StockCache interface {
	GetSubtreeTotal(ctx context.Context, shelfID string) (total int64, ok bool, generation int64, err error)
	SetSubtreeTotal(ctx context.Context, shelfID string, total, generation int64) (stored bool, err error)
	Invalidate(ctx context.Context, shelfIDs ...string) error
}

// IDGenerator produces identifiers
type IDGenerator interface {
	NewID() string
	// NewMovementID returns a time-ordered ledger id and its numeric sequence
	NewMovementID() (id string, seq int64)
	NewReferenceNumber() string
}

// HistoryExporter renders ledger rows into a downloadable document
type HistoryExporter interface {
	ContentType() string
	FileExtension() string
	Export(w io.Writer, movements []*domain.StockMovement) error
}

// Clock returns the current time
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
