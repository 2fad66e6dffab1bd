package application

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// Dependencies wires the ports shared by the application services.
// Cache, Exporter, Consumables and Metrics may be nil.
type Dependencies struct {
	Shelves     domain.ShelfRepository
	Stock       domain.StockRepository
	Routes      domain.RouteRepository
	Sessions    domain.PackingSessionRepository
	Sequences   domain.SequenceGenerator
	Transactor  Transactor
	Events      EventSink
	IDs         IDGenerator
	Orders      OrderStore
	Consumables ConsumableInventory
	Catalog     ProductCatalog
	Cache       StockCache
	Exporter    HistoryExporter
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
	Clock       Clock
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if d.Clock == nil {
		d.Clock = systemClock
	}
	return d
}

// Services groups the application services of the fulfillment core
type Services struct {
	Ledger   *LedgerService
	Transfer *TransferService
	Shelves  *ShelfService
	Routes   *RouteService
	Picking  *PickingService
	Packing  *PackingService
}

// NewServices builds every application service over deps
func NewServices(deps Dependencies) *Services {
	ledger := NewLedgerService(deps)
	return &Services{
		Ledger:   ledger,
		Transfer: NewTransferService(deps, ledger),
		Shelves:  NewShelfService(deps),
		Routes:   NewRouteService(deps, ledger),
		Picking:  NewPickingService(deps, ledger),
		Packing:  NewPackingService(deps, ledger),
	}
}

// Optimistic version checks on routes, sessions and shelves surface as
// ErrConcurrentModification; the whole transaction is replayed a few times
// before the conflict is reported.
var concurrencyRetry = &resilience.RetryConfig{
	MaxAttempts:   5,
	InitialDelay:  10 * time.Millisecond,
	MaxDelay:      200 * time.Millisecond,
	BackoffFactor: 2,
	RetryableErrors: func(err error) bool {
		return stderrors.Is(err, domain.ErrConcurrentModification)
	},
}

// inTransaction runs fn in a storage transaction under one span named op,
// replaying it on a version conflict. fn must load everything it mutates so a
// replay starts fresh.
func inTransaction(ctx context.Context, tx Transactor, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	_, err := tracing.Traced(ctx, op, attrs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, resilience.Retry(ctx, concurrencyRetry, func() error {
			return tx.RunInTransaction(ctx, fn)
		})
	})
	return err
}

// appendEvents moves an aggregate's pending events to the sink
func appendEvents(ctx context.Context, sink EventSink, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	return sink.Append(ctx, events...)
}
