package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// RouteService consolidates orders into routes and manages their lifecycle
type RouteService struct {
	routes    domain.RouteRepository
	sessions  domain.PackingSessionRepository
	sequences domain.SequenceGenerator
	orders    OrderStore
	catalog   ProductCatalog
	ledger    *LedgerService
	sourcer   stockSourcer
	events    EventSink
	ids       IDGenerator
	tx        Transactor
	metrics   *metrics.Metrics
	logger    *logging.Logger
	clock     Clock
}

// NewRouteService creates a new RouteService
func NewRouteService(deps Dependencies, ledger *LedgerService) *RouteService {
	deps = deps.withDefaults()
	return &RouteService{
		routes:    deps.Routes,
		sessions:  deps.Sessions,
		sequences: deps.Sequences,
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		ledger:    ledger,
		sourcer:   stockSourcer{shelves: deps.Shelves, stock: deps.Stock},
		events:    deps.Events,
		ids:       deps.IDs,
		tx:        deps.Transactor,
		metrics:   deps.Metrics,
		logger:    deps.Logger.WithComponent("routes"),
		clock:     deps.Clock,
	}
}

// loadRoute fetches a route or fails with not found
func loadRoute(ctx context.Context, routes domain.RouteRepository, routeID string) (*domain.Route, error) {
	route, err := routes.FindByID(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	if route == nil {
		return nil, errors.ErrNotFoundWithID("route", routeID)
	}
	return route, nil
}

// ensureNoActiveSession fails while a packing session of the route is open
func ensureNoActiveSession(ctx context.Context, sessions domain.PackingSessionRepository, routeID string) error {
	session, err := sessions.FindActiveByRoute(ctx, routeID)
	if err != nil {
		return fmt.Errorf("failed to look up packing session: %w", err)
	}
	if session != nil {
		return &domain.SessionActiveError{RouteID: routeID, SessionID: session.ID}
	}
	return nil
}

// writeBackStatus reports order progress to the Order Store after commit.
// The warehouse state is already durable, so failures are only logged.
func writeBackStatus(ctx context.Context, orders OrderStore, logger *logging.Logger, status domain.OrderStatus, orderIDs []string) {
	if orders == nil {
		return
	}
	for _, id := range orderIDs {
		if err := orders.UpdateStatus(ctx, id, status); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("Failed to write order status back", "orderId", id, "status", status)
		}
	}
}

// Create consolidates the given orders into a new READY route
func (s *RouteService) Create(ctx context.Context, cmd CreateRouteCommand) (*RouteDTO, error) {
	if len(cmd.OrderIDs) == 0 {
		return nil, toAppError(domain.ErrEmptyRoute)
	}
	seen := make(map[string]struct{}, len(cmd.OrderIDs))
	for _, id := range cmd.OrderIDs {
		if _, dup := seen[id]; dup {
			return nil, toAppError(domain.ErrDuplicateOrder)
		}
		seen[id] = struct{}{}
	}

	orders, err := s.fetchOrders(ctx, cmd.OrderIDs)
	if err != nil {
		return nil, err
	}

	var route *domain.Route
	err = inTransaction(ctx, s.tx, "route.create", nil, func(ctx context.Context) error {
		active, err := s.routes.ActiveRouteByOrder(ctx, cmd.OrderIDs)
		if err != nil {
			return fmt.Errorf("failed to check route membership: %w", err)
		}
		for _, id := range cmd.OrderIDs {
			if routeID, ok := active[id]; ok {
				return &domain.OrderInActiveRouteError{OrderID: id, RouteID: routeID}
			}
		}

		locations, err := s.sourcer.locations(ctx, orders[0].WarehouseID, productIDs(orders))
		if err != nil {
			return err
		}
		seq, err := s.sequences.Next(ctx, domain.RouteCounter)
		if err != nil {
			return fmt.Errorf("failed to allocate route number: %w", err)
		}

		r, err := domain.NewRoute(s.ids.NewID(), domain.RouteName(seq), cmd.Description, orders, locations, cmd.UserID, s.clock())
		if err != nil {
			return err
		}
		if err := s.routes.Insert(ctx, r); err != nil {
			return err
		}
		if err := appendEvents(ctx, s.events, r.GetDomainEvents()); err != nil {
			return err
		}
		route = r
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.metrics.RecordRouteCreated(len(route.Orders))
	var fresh []string
	for _, o := range orders {
		if o.Status == domain.OrderStatusNew {
			fresh = append(fresh, o.ID)
		}
	}
	writeBackStatus(ctx, s.orders, s.logger, domain.OrderStatusProcessing, fresh)

	s.logger.WithContext(ctx).Info("Created route",
		"routeId", route.ID,
		"name", route.Name,
		"orders", route.TotalOrderCount,
		"items", route.TotalItemCount,
	)
	return ToRouteDTO(route), nil
}

// fetchOrders loads the orders in request order and resolves missing product ids
func (s *RouteService) fetchOrders(ctx context.Context, orderIDs []string) ([]*domain.Order, error) {
	found, err := s.orders.GetOrders(ctx, orderIDs)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to fetch orders")
		return nil, errors.FromError(err)
	}
	byID := make(map[string]*domain.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}

	orders := make([]*domain.Order, 0, len(orderIDs))
	resolved := make(map[string]*domain.Product)
	for _, id := range orderIDs {
		order, ok := byID[id]
		if !ok {
			return nil, errors.ErrNotFoundWithID("order", id)
		}
		for i := range order.Lines {
			line := &order.Lines[i]
			if line.ProductID != "" {
				continue
			}
			product, err := s.resolve(ctx, line.Barcode, resolved)
			if err != nil {
				return nil, err
			}
			line.ProductID = product.ID
			if line.ProductName == "" {
				line.ProductName = product.Name
			}
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *RouteService) resolve(ctx context.Context, barcode string, cache map[string]*domain.Product) (*domain.Product, error) {
	if p, ok := cache[barcode]; ok {
		return p, nil
	}
	if s.catalog == nil {
		return nil, errors.ErrNotFound("product for barcode " + barcode)
	}
	product, err := s.catalog.ResolveBarcode(ctx, barcode)
	if err != nil {
		return nil, errors.FromError(err)
	}
	if product == nil {
		return nil, errors.ErrNotFound("product for barcode "+barcode).WithDetail("barcode", barcode)
	}
	cache[barcode] = product
	return product, nil
}

func productIDs(orders []*domain.Order) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range orders {
		for _, l := range o.Lines {
			if _, ok := seen[l.ProductID]; ok {
				continue
			}
			seen[l.ProductID] = struct{}{}
			out = append(out, l.ProductID)
		}
	}
	return out
}

// Get returns a route with its orders and pick list
func (s *RouteService) Get(ctx context.Context, routeID string) (*RouteDTO, error) {
	route, err := loadRoute(ctx, s.routes, routeID)
	if err != nil {
		return nil, err
	}
	return ToRouteDTO(route), nil
}

// List returns routes, optionally filtered by status, newest first
func (s *RouteService) List(ctx context.Context, q ListRoutesQuery) ([]RouteSummaryDTO, int64, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, 0, errors.ErrValidation("invalid route status: " + string(q.Status))
	}
	page, size := max(q.Page, 1), q.PageSize
	if size < 1 {
		size = 20
	}

	routes, total, err := s.routes.List(ctx, q.Status, (page-1)*size, size)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list routes")
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}
	out := make([]RouteSummaryDTO, 0, len(routes))
	for _, r := range routes {
		out = append(out, ToRouteSummaryDTO(r))
	}
	return out, total, nil
}

// CandidateOrders lists fulfillable orders that are not in an active route
func (s *RouteService) CandidateOrders(ctx context.Context, q CandidateOrdersQuery) ([]CandidateOrderDTO, error) {
	orders, err := s.orders.ListFulfillable(ctx, OrderFilter{
		WarehouseID: q.WarehouseID,
		Search:      strings.TrimSpace(q.Search),
		Limit:       q.Limit,
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list candidate orders")
		return nil, errors.FromError(err)
	}
	if len(orders) == 0 {
		return []CandidateOrderDTO{}, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	active, err := s.routes.ActiveRouteByOrder(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check route membership: %w", err)
	}

	out := make([]CandidateOrderDTO, 0, len(orders))
	for _, o := range orders {
		if _, busy := active[o.ID]; busy || !o.Status.IsFulfillable() {
			continue
		}
		out = append(out, ToCandidateOrderDTO(o))
	}
	return out, nil
}

// PrintLabel stamps the route label. Reprints are audited.
func (s *RouteService) PrintLabel(ctx context.Context, routeID, userID string) (*RouteLabelDTO, error) {
	var (
		route   *domain.Route
		reprint bool
	)
	err := inTransaction(ctx, s.tx, "route.print_label", tracing.RouteAttributes(routeID), func(ctx context.Context) error {
		r, err := loadRoute(ctx, s.routes, routeID)
		if err != nil {
			return err
		}
		if reprint, err = r.PrintLabel(userID, s.clock()); err != nil {
			return err
		}
		if err := s.routes.Update(ctx, r); err != nil {
			return err
		}
		if err := appendEvents(ctx, s.events, r.GetDomainEvents()); err != nil {
			return err
		}
		route = r
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	if reprint {
		s.logger.Audit(ctx, "reprint_label", "route", route.ID, userID, map[string]any{"printCount": route.LabelPrintCount})
	}
	return &RouteLabelDTO{
		RouteID:        route.ID,
		Name:           route.Name,
		Barcode:        route.Name,
		OrderCount:     route.TotalOrderCount,
		ItemCount:      route.TotalItemCount,
		Reprint:        reprint,
		PrintCount:     route.LabelPrintCount,
		FirstPrintedAt: *route.LabelPrintedAt,
	}, nil
}

// Cancel ends a route. Stock staged for orders that were picked but not
// packed goes back to its source shelves as CANCEL movements. Cancelling a
// cancelled route changes nothing.
func (s *RouteService) Cancel(ctx context.Context, routeID, userID string) (*RouteDTO, error) {
	var (
		route    *domain.Route
		write    *LedgerWrite
		released []string
		changed  bool
	)
	err := inTransaction(ctx, s.tx, "route.cancel", tracing.RouteAttributes(routeID), func(ctx context.Context) error {
		r, err := loadRoute(ctx, s.routes, routeID)
		if err != nil {
			return err
		}
		route, write, released, changed = r, nil, nil, false
		if r.Status == domain.RouteStatusCancelled {
			return nil
		}
		if err := ensureNoActiveSession(ctx, s.sessions, routeID); err != nil {
			return err
		}

		var release []domain.OrderPicks
		if release, changed, err = r.Cancel(s.clock()); err != nil {
			return err
		}
		if write, err = s.ledger.Apply(ctx, releasePicks(release, domain.MovementCancel, r.ID, userID, "route cancelled")...); err != nil {
			return err
		}
		if err := s.routes.Update(ctx, r); err != nil {
			return err
		}
		for _, ro := range r.Orders {
			if ro.PickStatus == domain.PickStatusPicked && !ro.Packed {
				released = append(released, ro.OrderID)
			}
		}
		return appendEvents(ctx, s.events, r.GetDomainEvents())
	})
	if err != nil {
		s.ledger.rejected(ctx, err)
		return nil, toAppError(err)
	}
	if !changed {
		return ToRouteDTO(route), nil
	}

	s.ledger.Committed(ctx, write)
	writeBackStatus(ctx, s.orders, s.logger, domain.OrderStatusProcessing, released)
	s.logger.Audit(ctx, "cancel", "route", route.ID, userID, map[string]any{
		"releasedOrders": len(released),
		"movements":      len(write.Movements),
	})
	return ToRouteDTO(route), nil
}
