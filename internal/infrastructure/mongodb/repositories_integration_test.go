package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	wmsmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
	pkgtesting "github.com/wms-platform/fulfillment-service/pkg/testing"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx      context.Context
	client   *wmsmongo.InstrumentedClient
	shelves  *ShelfRepository
	stock    *StockRepository
	routes   *RouteRepository
	sessions *PackingSessionRepository
	counters *CounterRepository
	seq      int64
	now      time.Time
}

func TestRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.client = pkgtesting.StartMongo(s.T())

	s.shelves = NewShelfRepository(s.client)
	s.stock = NewStockRepository(s.client)
	s.routes = NewRouteRepository(s.client)
	s.sessions = NewPackingSessionRepository(s.client)
	s.counters = NewCounterRepository(s.client)

	s.Require().NoError(s.shelves.EnsureIndexes(s.ctx))
	s.Require().NoError(s.stock.EnsureIndexes(s.ctx))
	s.Require().NoError(s.routes.EnsureIndexes(s.ctx))
	s.Require().NoError(s.sessions.EnsureIndexes(s.ctx))
}

func (s *RepositoryIntegrationTestSuite) SetupTest() {
	s.now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, name := range []string{ShelvesCollection, StockLevelsCollection, StockMovementsCollection,
		RoutesCollection, PackingSessionsCollection, CountersCollection} {
		_, err := s.client.Database().Collection(name).DeleteMany(s.ctx, bson.M{})
		s.Require().NoError(err)
	}
}

func (s *RepositoryIntegrationTestSuite) movement(shelfID, productID string, dir domain.Direction, qty int64) *domain.StockMovement {
	s.seq++
	s.now = s.now.Add(time.Second)
	return domain.NewStockMovement(fmt.Sprintf("mv-%d", s.seq), s.seq, domain.MovementRequest{
		ShelfID:   shelfID,
		ProductID: productID,
		Type:      domain.MovementAdjustment,
		Direction: dir,
		Quantity:  qty,
	}, s.now)
}

func (s *RepositoryIntegrationTestSuite) shelf(id, name string, parent *domain.Shelf, t domain.ShelfType, slot int64) *domain.Shelf {
	shelf, err := domain.NewShelf(id, parent, domain.ShelfAttributes{
		Name:        name,
		Type:        t,
		WarehouseID: "WH-1",
		GlobalSlot:  slot,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.shelves.Insert(s.ctx, shelf))
	return shelf
}

func (s *RepositoryIntegrationTestSuite) TestStock_ApplyAndSnapshots() {
	in := s.movement("s-1", "p-1", domain.DirectionIn, 10)
	s.Require().NoError(s.stock.Apply(s.ctx, in))
	s.Equal(int64(0), in.QuantityBefore)
	s.Equal(int64(10), in.QuantityAfter)

	out := s.movement("s-1", "p-1", domain.DirectionOut, 4)
	s.Require().NoError(s.stock.Apply(s.ctx, out))
	s.Equal(int64(10), out.QuantityBefore)
	s.Equal(int64(6), out.QuantityAfter)

	level, err := s.stock.Level(s.ctx, "s-1", "p-1")
	s.Require().NoError(err)
	s.Equal(int64(6), level)
}

func (s *RepositoryIntegrationTestSuite) TestStock_InsufficientWritesNothing() {
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-1", "p-1", domain.DirectionIn, 3)))

	err := s.stock.Apply(s.ctx, s.movement("s-1", "p-1", domain.DirectionOut, 5))
	var shortage *domain.InsufficientStockError
	s.Require().True(errors.As(err, &shortage))
	s.Equal(int64(3), shortage.Available)
	s.Equal(int64(5), shortage.Requested)

	err = s.stock.Apply(s.ctx, s.movement("s-2", "p-1", domain.DirectionOut, 1))
	s.Require().True(errors.As(err, &shortage))
	s.Equal(int64(0), shortage.Available)

	_, total, err := s.stock.History(s.ctx, domain.MovementFilter{ProductID: "p-1", Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *RepositoryIntegrationTestSuite) TestStock_TransactionRollback() {
	err := s.client.RunInTransaction(s.ctx, func(ctx context.Context) error {
		if err := s.stock.Apply(ctx, s.movement("s-1", "p-1", domain.DirectionIn, 5)); err != nil {
			return err
		}
		return s.stock.Apply(ctx, s.movement("s-2", "p-1", domain.DirectionOut, 5))
	})
	s.Require().Error(err)

	level, err := s.stock.Level(s.ctx, "s-1", "p-1")
	s.Require().NoError(err)
	s.Equal(int64(0), level)

	_, total, err := s.stock.History(s.ctx, domain.MovementFilter{Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(0), total)
}

func (s *RepositoryIntegrationTestSuite) TestStock_QueriesAndLedgerSum() {
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-1", "p-1", domain.DirectionIn, 10)))
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-1", "p-2", domain.DirectionIn, 2)))
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-2", "p-1", domain.DirectionIn, 7)))
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-1", "p-2", domain.DirectionOut, 2)))
	s.Require().NoError(s.stock.Apply(s.ctx, s.movement("s-1", "p-1", domain.DirectionOut, 3)))

	levels, err := s.stock.LevelsByShelves(s.ctx, []string{"s-1"})
	s.Require().NoError(err)
	s.Require().Len(levels, 1)
	s.Equal("p-1", levels[0].ProductID)

	forProduct, err := s.stock.LevelsForProduct(s.ctx, "p-1", []string{"s-1", "s-2", "s-3"})
	s.Require().NoError(err)
	s.Len(forProduct, 2)

	sum, err := s.stock.SumByShelves(s.ctx, []string{"s-1", "s-2"})
	s.Require().NoError(err)
	s.Equal(int64(14), sum)

	empty, err := s.stock.SumByShelves(s.ctx, []string{"nowhere"})
	s.Require().NoError(err)
	s.Equal(int64(0), empty)

	ledger, count, err := s.stock.LedgerSum(s.ctx, "s-1", "p-1")
	s.Require().NoError(err)
	s.Equal(int64(7), ledger)
	s.Equal(int64(2), count)

	page, total, err := s.stock.History(s.ctx, domain.MovementFilter{ShelfID: "s-1", Limit: 2})
	s.Require().NoError(err)
	s.Equal(int64(4), total)
	s.Require().Len(page, 2)
	s.Equal("mv-5", page[0].ID)
	s.Equal("mv-4", page[1].ID)

	page, _, err = s.stock.History(s.ctx, domain.MovementFilter{ShelfID: "s-1", Offset: 2, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal("mv-2", page[0].ID)
}

func (s *RepositoryIntegrationTestSuite) TestShelf_TreeQueries() {
	zone := s.shelf("zone", "A", nil, domain.ShelfTypeNormal, 3)
	rack := s.shelf("rack", "01", zone, domain.ShelfTypeNormal, 2)
	s.shelf("bin", "01", rack, domain.ShelfTypePicking, 1)
	s.shelf("pack", "P", nil, domain.ShelfTypePacking, 4)

	ids, err := s.shelves.SubtreeIDs(s.ctx, "zone")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"zone", "rack", "bin"}, ids)

	missing, err := s.shelves.SubtreeIDs(s.ctx, "ghost")
	s.Require().NoError(err)
	s.Nil(missing)

	children, err := s.shelves.CountChildren(s.ctx, "zone")
	s.Require().NoError(err)
	s.Equal(int64(1), children)

	all, err := s.shelves.FindByWarehouse(s.ctx, "WH-1")
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Equal("bin", all[0].ID)

	packing, err := s.shelves.FindByType(s.ctx, "WH-1", domain.ShelfTypePacking)
	s.Require().NoError(err)
	s.Require().Len(packing, 1)
	s.Equal("pack", packing[0].ID)

	bin, err := s.shelves.FindByID(s.ctx, "bin")
	s.Require().NoError(err)
	s.Equal("A/01/01", bin.Path)
	s.Equal([]string{"zone", "rack"}, bin.AncestorIDs)

	ghost, err := s.shelves.FindByID(s.ctx, "ghost")
	s.Require().NoError(err)
	s.Nil(ghost)
}

func (s *RepositoryIntegrationTestSuite) TestShelf_DuplicateBarcode() {
	s.shelf("a", "A", nil, domain.ShelfTypeNormal, 1)
	dup, err := domain.NewShelf("b", nil, domain.ShelfAttributes{
		Name: "B", Type: domain.ShelfTypeNormal, WarehouseID: "WH-1", GlobalSlot: 1,
	}, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.shelves.Insert(s.ctx, dup), domain.ErrDuplicateShelfBarcode)
}

func (s *RepositoryIntegrationTestSuite) TestShelf_UpdateTreeVersionGuard() {
	s.shelf("zone-a", "A", nil, domain.ShelfTypeNormal, 1)
	s.shelf("zone-b", "B", nil, domain.ShelfTypeNormal, 2)
	s.shelf("rack", "01", nil, domain.ShelfTypeNormal, 3)

	all, err := s.shelves.FindByWarehouse(s.ctx, "WH-1")
	s.Require().NoError(err)
	tree := domain.NewShelfTree(all)

	target := "zone-a"
	changed, err := tree.Move("rack", &target, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.shelves.UpdateTree(s.ctx, changed, []string{"zone-a"}))

	moved, err := s.shelves.FindByID(s.ctx, "rack")
	s.Require().NoError(err)
	s.Equal("A/01", moved.Path)
	s.Equal(int64(1), moved.Version)

	stale := domain.NewShelfTree(all)
	other := "zone-b"
	changed, err = stale.Move("rack", &other, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.shelves.UpdateTree(s.ctx, changed, nil), domain.ErrConcurrentModification)

	s.Require().NoError(s.shelves.Delete(s.ctx, "zone-b"))
	gone, err := s.shelves.FindByID(s.ctx, "zone-b")
	s.Require().NoError(err)
	s.Nil(gone)
}

func (s *RepositoryIntegrationTestSuite) newRoute(id, name string, orderIDs ...string) *domain.Route {
	orders := make([]*domain.Order, 0, len(orderIDs))
	for _, oid := range orderIDs {
		orders = append(orders, &domain.Order{
			ID:          oid,
			OrderNumber: "N-" + oid,
			WarehouseID: "WH-1",
			Status:      domain.OrderStatusNew,
			Lines:       []domain.OrderLine{{ProductID: "p-1", ProductName: "Mug", Barcode: "111", Quantity: 1}},
		})
	}
	route, err := domain.NewRoute(id, name, "", orders, nil, "u-1", s.now)
	s.Require().NoError(err)
	return route
}

func (s *RepositoryIntegrationTestSuite) TestRoute_ActiveMembership() {
	first := s.newRoute("r-1", "R000001", "o-1", "o-2")
	s.Require().NoError(s.routes.Insert(s.ctx, first))

	clash := s.newRoute("r-2", "R000002", "o-2", "o-3")
	s.ErrorIs(s.routes.Insert(s.ctx, clash), domain.ErrActiveRouteMembership)

	active, err := s.routes.ActiveRouteByOrder(s.ctx, []string{"o-1", "o-3"})
	s.Require().NoError(err)
	s.Equal(map[string]string{"o-1": "r-1"}, active)

	_, changed, err := first.Cancel(s.now)
	s.Require().NoError(err)
	s.Require().True(changed)
	s.Require().NoError(s.routes.Update(s.ctx, first))

	s.Require().NoError(s.routes.Insert(s.ctx, clash))
	active, err = s.routes.ActiveRouteByOrder(s.ctx, []string{"o-1", "o-2"})
	s.Require().NoError(err)
	s.Equal(map[string]string{"o-2": "r-2"}, active)
}

func (s *RepositoryIntegrationTestSuite) TestRoute_ActiveByPickShelf() {
	route := s.newRoute("r-1", "R000001", "o-1")
	_, err := route.Scan("111", 1, s.now)
	s.Require().NoError(err)
	s.Require().NoError(route.RecordPicks("o-1", []domain.PickRecord{
		{ShelfID: "pick", ProductID: "p-1", Quantity: 1, StagingShelfID: "pack"},
	}))
	s.Require().NoError(s.routes.Insert(s.ctx, route))

	for shelfID, want := range map[string]string{"pick": "r-1", "pack": "r-1", "bulk": ""} {
		got, err := s.routes.ActiveRouteByPickShelf(s.ctx, shelfID)
		s.Require().NoError(err)
		s.Equal(want, got, shelfID)
	}

	_, _, err = route.Cancel(s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.routes.Update(s.ctx, route))

	got, err := s.routes.ActiveRouteByPickShelf(s.ctx, "pick")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *RepositoryIntegrationTestSuite) TestRoute_OptimisticUpdateAndList() {
	route := s.newRoute("r-1", "R000001", "o-1")
	s.Require().NoError(s.routes.Insert(s.ctx, route))

	copyA, err := s.routes.FindByID(s.ctx, "r-1")
	s.Require().NoError(err)
	copyB, err := s.routes.FindByID(s.ctx, "r-1")
	s.Require().NoError(err)

	_, err = copyA.Scan("111", 1, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.routes.Update(s.ctx, copyA))
	s.Equal(int64(1), copyA.Version)

	_, err = copyB.Scan("111", 1, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.routes.Update(s.ctx, copyB), domain.ErrConcurrentModification)

	s.now = s.now.Add(time.Minute)
	s.Require().NoError(s.routes.Insert(s.ctx, s.newRoute("r-2", "R000002", "o-2")))

	routes, total, err := s.routes.List(s.ctx, "", 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Equal("r-2", routes[0].ID)

	picked, total, err := s.routes.List(s.ctx, domain.RouteStatusPicked, 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("r-1", picked[0].ID)
}

func (s *RepositoryIntegrationTestSuite) TestPackingSession_OneActivePerRoute() {
	route := s.newRoute("r-1", "R000001", "o-1")
	_, err := route.Scan("111", 1, s.now)
	s.Require().NoError(err)

	first, err := domain.NewPackingSession("ps-1", route, "u-1", "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.sessions.Insert(s.ctx, first))

	second, err := domain.NewPackingSession("ps-2", route, "u-2", "", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.sessions.Insert(s.ctx, second), domain.ErrActiveSessionExists)

	found, err := s.sessions.FindActiveByRoute(s.ctx, "r-1")
	s.Require().NoError(err)
	s.Equal("ps-1", found.ID)

	_, err = first.Cancel(s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.sessions.Update(s.ctx, first))

	none, err := s.sessions.FindActiveByRoute(s.ctx, "r-1")
	s.Require().NoError(err)
	s.Nil(none)
	s.Require().NoError(s.sessions.Insert(s.ctx, second))

	stale, err := s.sessions.FindByID(s.ctx, "ps-1")
	s.Require().NoError(err)
	stale.Version = 0
	s.ErrorIs(s.sessions.Update(s.ctx, stale), domain.ErrConcurrentModification)
}

func (s *RepositoryIntegrationTestSuite) TestCounter_Next() {
	for want := int64(1); want <= 3; want++ {
		got, err := s.counters.Next(s.ctx, domain.RouteCounter)
		s.Require().NoError(err)
		s.Equal(want, got)
	}

	slot, err := s.counters.Next(s.ctx, domain.ShelfSlotCounter("WH-1"))
	s.Require().NoError(err)
	s.Equal(int64(1), slot)
}
