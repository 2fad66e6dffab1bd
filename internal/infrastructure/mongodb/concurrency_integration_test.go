package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
)

var conflictRetry = &resilience.RetryConfig{
	MaxAttempts:   20,
	InitialDelay:  5 * time.Millisecond,
	MaxDelay:      100 * time.Millisecond,
	BackoffFactor: 2,
	RetryableErrors: func(err error) bool {
		return errors.Is(err, domain.ErrConcurrentModification)
	},
}

func (s *RepositoryIntegrationTestSuite) TestStock_ConcurrentOutflowsNeverOverdraw() {
	const (
		stocked  = 10
		attempts = 24
	)
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-1", "p-1", domain.DirectionIn, stocked)))

	movements := make([]*domain.StockMovement, attempts)
	for i := range movements {
		movements[i] = s.movement("s-1", "p-1", domain.DirectionOut, 1)
	}

	var (
		wg        sync.WaitGroup
		applied   atomic.Int64
		shortages atomic.Int64
		failures  = make(chan error, attempts)
	)
	for _, mv := range movements {
		wg.Add(1)
		go func(mv *domain.StockMovement) {
			defer wg.Done()
			err := s.client.RunInTransaction(s.ctx, func(ctx context.Context) error {
				return s.stock.Apply(ctx, mv)
			})
			var shortage *domain.InsufficientStockError
			switch {
			case err == nil:
				applied.Add(1)
			case errors.As(err, &shortage):
				shortages.Add(1)
			default:
				failures <- err
			}
		}(mv)
	}
	wg.Wait()
	close(failures)

	for err := range failures {
		s.Require().NoError(err)
	}
	s.Equal(int64(stocked), applied.Load())
	s.Equal(int64(attempts-stocked), shortages.Load())

	level, err := s.stock.Level(s.ctx, "s-1", "p-1")
	s.Require().NoError(err)
	s.Equal(int64(0), level)

	ledger, count, err := s.stock.LedgerSum(s.ctx, "s-1", "p-1")
	s.Require().NoError(err)
	s.Equal(level, ledger)
	s.Equal(int64(stocked+1), count)

	rows, _, err := s.stock.History(s.ctx, domain.MovementFilter{ShelfID: "s-1", Limit: 100})
	s.Require().NoError(err)
	s.Require().Len(rows, stocked+1)

	// committed snapshots chain without gaps or repeats
	sort.Slice(rows, func(i, j int) bool { return rows[i].QuantityAfter > rows[j].QuantityAfter })
	for i, row := range rows {
		s.GreaterOrEqual(row.QuantityAfter, int64(0))
		if i > 0 {
			s.Equal(rows[i-1].QuantityAfter, row.QuantityBefore, "row %s", row.ID)
		}
	}
}

func (s *RepositoryIntegrationTestSuite) pickingOrder(id, barcode string, qty int64) *domain.Order {
	return &domain.Order{
		ID:          id,
		OrderNumber: "N-" + id,
		WarehouseID: "WH-1",
		Status:      domain.OrderStatusNew,
		Lines:       []domain.OrderLine{{ProductID: "p-" + barcode, ProductName: barcode, Barcode: barcode, Quantity: qty}},
	}
}

// scanOnce applies one unit scan the way a picker's scan lands: the route and
// the stock it stages for completed orders commit together.
func (s *RepositoryIntegrationTestSuite) scanOnce(routeID, barcode string, ids *atomic.Int64) error {
	return resilience.Retry(s.ctx, conflictRetry, func() error {
		return s.client.RunInTransaction(s.ctx, func(ctx context.Context) error {
			route, err := s.routes.FindByID(ctx, routeID)
			if err != nil {
				return err
			}
			res, err := route.Scan(barcode, 1, s.now)
			if err != nil {
				return err
			}
			for _, orderID := range res.CompletedOrders {
				ro := route.Order(orderID)
				qty := ro.Lines[0].Quantity
				for _, req := range []domain.MovementRequest{
					{ShelfID: "pick", ProductID: "p-" + barcode, Type: domain.MovementPicking, Direction: domain.DirectionOut, Quantity: qty, OrderID: orderID, RouteID: routeID},
					{ShelfID: "pack", ProductID: "p-" + barcode, Type: domain.MovementPackingIn, Direction: domain.DirectionIn, Quantity: qty, OrderID: orderID, RouteID: routeID},
				} {
					seq := ids.Add(1)
					if err := s.stock.Apply(ctx, domain.NewStockMovement(fmt.Sprintf("scan-%d", seq), seq, req, s.now)); err != nil {
						return err
					}
				}
				picks := []domain.PickRecord{{ShelfID: "pick", ProductID: "p-" + barcode, Quantity: qty, StagingShelfID: "pack"}}
				if err := route.RecordPicks(orderID, picks); err != nil {
					return err
				}
			}
			return s.routes.Update(ctx, route)
		})
	})
}

func (s *RepositoryIntegrationTestSuite) TestRoute_ConcurrentScansPickEachUnitOnce() {
	const pickers = 8
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("pick", "p-X", domain.DirectionIn, 10)))

	route, err := domain.NewRoute("r-1", "R000001", "", []*domain.Order{
		s.pickingOrder("o-1", "X", 3),
		s.pickingOrder("o-2", "X", 2),
	}, nil, "u-1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.routes.Insert(s.ctx, route))

	var (
		wg       sync.WaitGroup
		ids      atomic.Int64
		accepted atomic.Int64
		rejected atomic.Int64
		failures = make(chan error, pickers*10)
	)
	ids.Store(1000)
	for p := 0; p < pickers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2; i++ {
				err := s.scanOnce("r-1", "X", &ids)
				var unknown *domain.UnknownBarcodeError
				var over *domain.OverScanError
				var transition *domain.InvalidTransitionError
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.As(err, &unknown), errors.As(err, &over), errors.As(err, &transition):
					rejected.Add(1)
				default:
					failures <- err
				}
			}
		}()
	}
	wg.Wait()
	close(failures)

	for err := range failures {
		s.Require().NoError(err)
	}
	s.Equal(int64(5), accepted.Load())
	s.Equal(int64(pickers*2-5), rejected.Load())

	stored, err := s.routes.FindByID(s.ctx, "r-1")
	s.Require().NoError(err)
	s.Equal(domain.RouteStatusPicked, stored.Status)
	s.Equal(int64(5), stored.PickedItemCount)
	item := stored.Item("X")
	s.Require().NotNil(item)
	s.Equal(item.TotalQuantity, item.PickedQuantity)
	for _, ro := range stored.Orders {
		s.Len(ro.Picks, 1, "order %s", ro.OrderID)
	}

	picking, _, err := s.stock.History(s.ctx, domain.MovementFilter{ShelfID: "pick", Type: domain.MovementPicking, Limit: 100})
	s.Require().NoError(err)
	s.Require().Len(picking, 2)
	perOrder := map[string]int64{}
	for _, row := range picking {
		perOrder[row.OrderID] += row.Quantity
	}
	s.Equal(map[string]int64{"o-1": 3, "o-2": 2}, perOrder)

	level, err := s.stock.Level(s.ctx, "pick", "p-X")
	s.Require().NoError(err)
	s.Equal(int64(5), level)
	staged, err := s.stock.Level(s.ctx, "pack", "p-X")
	s.Require().NoError(err)
	s.Equal(int64(5), staged)
}
