package application

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// bsonCopy deep-copies a document the way a round trip through MongoDB would
func bsonCopy[T any](t *testing.T, v *T) *T {
	data, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := bson.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

type fakeShelfRepo struct {
	t       *testing.T
	shelves map[string]*domain.Shelf
}

func (f *fakeShelfRepo) Insert(ctx context.Context, shelf *domain.Shelf) error {
	for _, s := range f.shelves {
		if s.Barcode == shelf.Barcode {
			return domain.ErrDuplicateShelfBarcode
		}
	}
	f.shelves[shelf.ID] = bsonCopy(f.t, shelf)
	return nil
}

func (f *fakeShelfRepo) FindByID(ctx context.Context, id string) (*domain.Shelf, error) {
	s, ok := f.shelves[id]
	if !ok {
		return nil, nil
	}
	return bsonCopy(f.t, s), nil
}

func (f *fakeShelfRepo) FindByIDs(ctx context.Context, ids []string) ([]*domain.Shelf, error) {
	var out []*domain.Shelf
	for _, id := range ids {
		if s, ok := f.shelves[id]; ok {
			out = append(out, bsonCopy(f.t, s))
		}
	}
	return out, nil
}

func (f *fakeShelfRepo) FindByWarehouse(ctx context.Context, warehouseID string) ([]*domain.Shelf, error) {
	var out []*domain.Shelf
	for _, s := range f.shelves {
		if s.WarehouseID == warehouseID {
			out = append(out, bsonCopy(f.t, s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GlobalSlot < out[j].GlobalSlot })
	return out, nil
}

func (f *fakeShelfRepo) FindByType(ctx context.Context, warehouseID string, st domain.ShelfType) ([]*domain.Shelf, error) {
	all, _ := f.FindByWarehouse(ctx, warehouseID)
	var out []*domain.Shelf
	for _, s := range all {
		if s.Type == st {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeShelfRepo) SubtreeIDs(ctx context.Context, id string) ([]string, error) {
	if _, ok := f.shelves[id]; !ok {
		return nil, nil
	}
	out := []string{id}
	for _, s := range f.shelves {
		for _, a := range s.AncestorIDs {
			if a == id {
				out = append(out, s.ID)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeShelfRepo) CountChildren(ctx context.Context, id string) (int64, error) {
	var n int64
	for _, s := range f.shelves {
		if s.ParentID != nil && *s.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (f *fakeShelfRepo) UpdateTree(ctx context.Context, changed []*domain.Shelf, touched []string) error {
	for _, s := range changed {
		stored, ok := f.shelves[s.ID]
		if !ok {
			return domain.ErrShelfNotFound
		}
		if stored.Version != s.Version {
			return domain.ErrConcurrentModification
		}
		cp := bsonCopy(f.t, s)
		cp.Version++
		f.shelves[s.ID] = cp
	}
	for _, id := range touched {
		if stored, ok := f.shelves[id]; ok {
			stored.Version++
		}
	}
	return nil
}

func (f *fakeShelfRepo) Delete(ctx context.Context, id string) error {
	delete(f.shelves, id)
	return nil
}

type levelKey struct{ shelf, product string }

type fakeStockRepo struct {
	levels    map[levelKey]int64
	movements []*domain.StockMovement
	// afterSum runs once SumByShelves has its result
	afterSum func()
}

func (f *fakeStockRepo) Apply(ctx context.Context, m *domain.StockMovement) error {
	k := levelKey{m.ShelfID, m.ProductID}
	before := f.levels[k]
	after, err := m.Direction.Apply(m.ShelfID, m.ProductID, before, m.Quantity)
	if err != nil {
		return err
	}
	m.QuantityBefore, m.QuantityAfter = before, after
	f.levels[k] = after
	cp := *m
	f.movements = append(f.movements, &cp)
	return nil
}

func (f *fakeStockRepo) Level(ctx context.Context, shelfID, productID string) (int64, error) {
	return f.levels[levelKey{shelfID, productID}], nil
}

func (f *fakeStockRepo) LevelsByShelves(ctx context.Context, shelfIDs []string) ([]domain.StockLevel, error) {
	var out []domain.StockLevel
	for _, id := range shelfIDs {
		for k, q := range f.levels {
			if k.shelf == id && q != 0 {
				out = append(out, domain.StockLevel{ShelfID: k.shelf, ProductID: k.product, Quantity: q})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (f *fakeStockRepo) LevelsForProduct(ctx context.Context, productID string, shelfIDs []string) ([]domain.StockLevel, error) {
	var out []domain.StockLevel
	for _, id := range shelfIDs {
		if q := f.levels[levelKey{id, productID}]; q != 0 {
			out = append(out, domain.StockLevel{ShelfID: id, ProductID: productID, Quantity: q})
		}
	}
	return out, nil
}

func (f *fakeStockRepo) SumByShelves(ctx context.Context, shelfIDs []string) (int64, error) {
	var total int64
	levels, _ := f.LevelsByShelves(ctx, shelfIDs)
	for _, l := range levels {
		total += l.Quantity
	}
	if f.afterSum != nil {
		f.afterSum()
	}
	return total, nil
}

func (f *fakeStockRepo) History(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, int64, error) {
	var matched []*domain.StockMovement
	for _, m := range f.movements {
		if (filter.ShelfID == "" || m.ShelfID == filter.ShelfID) &&
			(filter.ProductID == "" || m.ProductID == filter.ProductID) &&
			(filter.OrderID == "" || m.OrderID == filter.OrderID) &&
			(filter.RouteID == "" || m.RouteID == filter.RouteID) &&
			(filter.Type == "" || m.Type == filter.Type) {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Sequence > matched[j].Sequence })
	total := int64(len(matched))
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (f *fakeStockRepo) LedgerSum(ctx context.Context, shelfID, productID string) (int64, int64, error) {
	var sum, count int64
	for _, m := range f.movements {
		if m.ShelfID == shelfID && m.ProductID == productID {
			sum += m.Signed()
			count++
		}
	}
	return sum, count, nil
}

// rows returns the movements of one type, oldest first
func (f *fakeStockRepo) rows(mt domain.MovementType) []*domain.StockMovement {
	var out []*domain.StockMovement
	for _, m := range f.movements {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

type fakeRouteRepo struct {
	t      *testing.T
	routes map[string]*domain.Route
}

func (f *fakeRouteRepo) Insert(ctx context.Context, route *domain.Route) error {
	active, _ := f.ActiveRouteByOrder(ctx, route.OrderIDs)
	if len(active) > 0 {
		return domain.ErrActiveRouteMembership
	}
	f.routes[route.ID] = bsonCopy(f.t, route)
	return nil
}

func (f *fakeRouteRepo) FindByID(ctx context.Context, id string) (*domain.Route, error) {
	r, ok := f.routes[id]
	if !ok {
		return nil, nil
	}
	return bsonCopy(f.t, r), nil
}

func (f *fakeRouteRepo) Update(ctx context.Context, route *domain.Route) error {
	stored, ok := f.routes[route.ID]
	if !ok || stored.Version != route.Version {
		return domain.ErrConcurrentModification
	}
	route.Version++
	f.routes[route.ID] = bsonCopy(f.t, route)
	return nil
}

func (f *fakeRouteRepo) List(ctx context.Context, status domain.RouteStatus, offset, limit int64) ([]*domain.Route, int64, error) {
	var out []*domain.Route
	for _, r := range f.routes {
		if status == "" || r.Status == status {
			out = append(out, bsonCopy(f.t, r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	total := int64(len(out))
	start := min(offset, total)
	return out[start:min(start+limit, total)], total, nil
}

func (f *fakeRouteRepo) ActiveRouteByOrder(ctx context.Context, orderIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, r := range f.routes {
		if !r.Active {
			continue
		}
		for _, id := range r.OrderIDs {
			for _, want := range orderIDs {
				if id == want {
					out[id] = r.ID
				}
			}
		}
	}
	return out, nil
}

func (f *fakeRouteRepo) ActiveRouteByPickShelf(ctx context.Context, shelfID string) (string, error) {
	for _, r := range f.routes {
		if !r.Active {
			continue
		}
		for _, o := range r.Orders {
			for _, p := range o.Picks {
				if p.ShelfID == shelfID || p.StagingShelfID == shelfID {
					return r.ID, nil
				}
			}
		}
	}
	return "", nil
}

type fakeSessionRepo struct {
	t        *testing.T
	sessions map[string]*domain.PackingSession
}

func (f *fakeSessionRepo) Insert(ctx context.Context, session *domain.PackingSession) error {
	if active, _ := f.FindActiveByRoute(ctx, session.RouteID); active != nil {
		return domain.ErrActiveSessionExists
	}
	f.sessions[session.ID] = bsonCopy(f.t, session)
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*domain.PackingSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return bsonCopy(f.t, s), nil
}

func (f *fakeSessionRepo) FindActiveByRoute(ctx context.Context, routeID string) (*domain.PackingSession, error) {
	for _, s := range f.sessions {
		if s.RouteID == routeID && s.Status == domain.SessionStatusActive {
			return bsonCopy(f.t, s), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) Update(ctx context.Context, session *domain.PackingSession) error {
	stored, ok := f.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return domain.ErrConcurrentModification
	}
	session.Version++
	f.sessions[session.ID] = bsonCopy(f.t, session)
	return nil
}

type fakeSequences struct {
	counters map[string]int64
}

func (f *fakeSequences) Next(ctx context.Context, name string) (int64, error) {
	f.counters[name]++
	return f.counters[name], nil
}

type fakeEvents struct {
	events []domain.DomainEvent
}

func (f *fakeEvents) Append(ctx context.Context, events ...domain.DomainEvent) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEvents) count(eventType string) int {
	n := 0
	for _, e := range f.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type fakeIDs struct {
	n int64
}

func (f *fakeIDs) NewID() string {
	f.n++
	return fmt.Sprintf("id-%d", f.n)
}

func (f *fakeIDs) NewMovementID() (string, int64) {
	f.n++
	return fmt.Sprintf("mv-%06d", f.n), f.n
}

func (f *fakeIDs) NewReferenceNumber() string {
	f.n++
	return fmt.Sprintf("ref-%d", f.n)
}

type fakeOrderStore struct {
	orders   map[string]*domain.Order
	statuses map[string]domain.OrderStatus
	err      error
}

func (f *fakeOrderStore) GetOrders(ctx context.Context, ids []string) ([]*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Order
	for _, id := range ids {
		if o, ok := f.orders[id]; ok {
			cp := *o
			cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListFulfillable(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.orders {
		if o.Status.IsFulfillable() && (filter.WarehouseID == "" || o.WarehouseID == filter.WarehouseID) &&
			(filter.Search == "" || strings.Contains(o.OrderNumber, filter.Search)) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOrderStore) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	f.statuses[orderID] = status
	return nil
}

type debitCall struct {
	key     string
	orderID string
	usage   []domain.ConsumableUsage
}

type fakeConsumables struct {
	calls []debitCall
}

func (f *fakeConsumables) Debit(ctx context.Context, key, orderID string, usage []domain.ConsumableUsage) error {
	f.calls = append(f.calls, debitCall{key: key, orderID: orderID, usage: usage})
	return nil
}

type fakeCatalog struct {
	products map[string]*domain.Product
}

func (f *fakeCatalog) ResolveBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	for _, p := range f.products {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return f.products[productID], nil
}

type fakeCache struct {
	totals      map[string]int64
	generations map[string]int64
	invalidated []string
}

func (f *fakeCache) GetSubtreeTotal(ctx context.Context, shelfID string) (int64, bool, int64, error) {
	v, ok := f.totals[shelfID]
	return v, ok, f.generations[shelfID], nil
}

func (f *fakeCache) SetSubtreeTotal(ctx context.Context, shelfID string, total, generation int64) (bool, error) {
	if f.generations[shelfID] != generation {
		return false, nil
	}
	f.totals[shelfID] = total
	return true, nil
}

func (f *fakeCache) Invalidate(ctx context.Context, shelfIDs ...string) error {
	for _, id := range shelfIDs {
		delete(f.totals, id)
		f.generations[id]++
	}
	f.invalidated = append(f.invalidated, shelfIDs...)
	return nil
}

type fakeExporter struct{}

func (fakeExporter) ContentType() string   { return "text/csv" }
func (fakeExporter) FileExtension() string { return "csv" }
func (fakeExporter) Export(w io.Writer, movements []*domain.StockMovement) error {
	for _, m := range movements {
		if _, err := fmt.Fprintf(w, "%s,%s,%d\n", m.ID, m.Type, m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// fixture wires every service over in-memory stores. Its transactor
// restores the stores when the transaction function fails.
type fixture struct {
	t           *testing.T
	shelves     *fakeShelfRepo
	stock       *fakeStockRepo
	routes      *fakeRouteRepo
	sessions    *fakeSessionRepo
	sequences   *fakeSequences
	events      *fakeEvents
	ids         *fakeIDs
	orders      *fakeOrderStore
	consumables *fakeConsumables
	catalog     *fakeCatalog
	cache       *fakeCache
	svc         *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:           t,
		shelves:     &fakeShelfRepo{t: t, shelves: map[string]*domain.Shelf{}},
		stock:       &fakeStockRepo{levels: map[levelKey]int64{}},
		routes:      &fakeRouteRepo{t: t, routes: map[string]*domain.Route{}},
		sessions:    &fakeSessionRepo{t: t, sessions: map[string]*domain.PackingSession{}},
		sequences:   &fakeSequences{counters: map[string]int64{}},
		events:      &fakeEvents{},
		ids:         &fakeIDs{},
		orders:      &fakeOrderStore{orders: map[string]*domain.Order{}, statuses: map[string]domain.OrderStatus{}},
		consumables: &fakeConsumables{},
		catalog:     &fakeCatalog{products: map[string]*domain.Product{}},
		cache:       &fakeCache{totals: map[string]int64{}, generations: map[string]int64{}},
	}
	f.svc = NewServices(Dependencies{
		Shelves:     f.shelves,
		Stock:       f.stock,
		Routes:      f.routes,
		Sessions:    f.sessions,
		Sequences:   f.sequences,
		Transactor:  f,
		Events:      f.events,
		IDs:         f.ids,
		Orders:      f.orders,
		Consumables: f.consumables,
		Catalog:     f.catalog,
		Cache:       f.cache,
		Exporter:    fakeExporter{},
		Logger:      logging.NewNop(),
		Clock:       func() time.Time { return fixedNow },
	})
	return f
}

// RunInTransaction implements Transactor
func (f *fixture) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	shelves := make(map[string]*domain.Shelf, len(f.shelves.shelves))
	for k, v := range f.shelves.shelves {
		shelves[k] = bsonCopy(f.t, v)
	}
	levels := make(map[levelKey]int64, len(f.stock.levels))
	for k, v := range f.stock.levels {
		levels[k] = v
	}
	movements := len(f.stock.movements)
	routes := make(map[string]*domain.Route, len(f.routes.routes))
	for k, v := range f.routes.routes {
		routes[k] = v
	}
	sessions := make(map[string]*domain.PackingSession, len(f.sessions.sessions))
	for k, v := range f.sessions.sessions {
		sessions[k] = v
	}
	counters := make(map[string]int64, len(f.sequences.counters))
	for k, v := range f.sequences.counters {
		counters[k] = v
	}
	events := len(f.events.events)

	if err := fn(ctx); err != nil {
		f.shelves.shelves = shelves
		f.stock.levels = levels
		f.stock.movements = f.stock.movements[:movements]
		f.routes.routes = routes
		f.sessions.sessions = sessions
		f.sequences.counters = counters
		f.events.events = f.events.events[:events]
		return err
	}
	return nil
}

func (f *fixture) addShelf(name string, st domain.ShelfType, parent *domain.Shelf) *domain.Shelf {
	f.t.Helper()
	slot, _ := f.sequences.Next(context.Background(), domain.ShelfSlotCounter("WH-1"))
	s, err := domain.NewShelf("shelf-"+strings.ToLower(name), parent, domain.ShelfAttributes{
		Name:        name,
		Type:        st,
		WarehouseID: "WH-1",
		GlobalSlot:  slot,
	}, fixedNow)
	require.NoError(f.t, err)
	require.NoError(f.t, f.shelves.Insert(context.Background(), s))
	return s
}

func (f *fixture) setLevel(shelfID, productID string, qty int64) {
	f.t.Helper()
	_, err := f.svc.Ledger.RecordMovement(context.Background(), RecordMovementCommand{
		ShelfID:   shelfID,
		ProductID: productID,
		Type:      domain.MovementReceiving,
		Direction: domain.DirectionIn,
		Quantity:  qty,
	})
	require.NoError(f.t, err)
}

func (f *fixture) level(shelfID, productID string) int64 {
	return f.stock.levels[levelKey{shelfID, productID}]
}

func (f *fixture) addProduct(id, barcode string) {
	f.catalog.products[id] = &domain.Product{ID: id, Name: "Product " + id, Barcode: barcode}
}

// addOrder registers an order whose lines are "barcode:qty"; the product id is "p-"+barcode
func (f *fixture) addOrder(id string, lines ...string) {
	o := &domain.Order{ID: id, OrderNumber: "ON-" + id, WarehouseID: "WH-1", Status: domain.OrderStatusNew, CreatedAt: fixedNow}
	for _, l := range lines {
		var barcode string
		var qty int64
		parts := strings.SplitN(l, ":", 2)
		barcode = parts[0]
		_, _ = fmt.Sscanf(parts[1], "%d", &qty)
		o.Lines = append(o.Lines, domain.OrderLine{ProductID: "p-" + barcode, ProductName: barcode, Barcode: barcode, Quantity: qty})
		f.addProduct("p-"+barcode, barcode)
	}
	f.orders.orders[id] = o
}

// warehouse sets up a picking shelf, a normal shelf and a packing shelf
func (f *fixture) warehouse() (picking, normal, packing *domain.Shelf) {
	picking = f.addShelf("PICK-1", domain.ShelfTypePicking, nil)
	normal = f.addShelf("BULK-1", domain.ShelfTypeNormal, nil)
	packing = f.addShelf("PACK-1", domain.ShelfTypePacking, nil)
	return picking, normal, packing
}
