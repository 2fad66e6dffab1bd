package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// PackingService verifies and seals the orders of a picked route
type PackingService struct {
	routes      domain.RouteRepository
	sessions    domain.PackingSessionRepository
	orders      OrderStore
	consumables ConsumableInventory
	ledger      *LedgerService
	events      EventSink
	ids         IDGenerator
	tx          Transactor
	metrics     *metrics.Metrics
	logger      *logging.Logger
	clock       Clock
}

// NewPackingService creates a new PackingService
func NewPackingService(deps Dependencies, ledger *LedgerService) *PackingService {
	deps = deps.withDefaults()
	return &PackingService{
		routes:      deps.Routes,
		sessions:    deps.Sessions,
		orders:      deps.Orders,
		consumables: deps.Consumables,
		ledger:      ledger,
		events:      deps.Events,
		ids:         deps.IDs,
		tx:          deps.Transactor,
		metrics:     deps.Metrics,
		logger:      deps.Logger.WithComponent("packing"),
		clock:       deps.Clock,
	}
}

func (s *PackingService) loadSession(ctx context.Context, sessionID string) (*domain.PackingSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get packing session: %w", err)
	}
	if session == nil {
		return nil, errors.ErrNotFoundWithID("packing session", sessionID)
	}
	return session, nil
}

// ConsumablesKey is the idempotency key of an order's consumable debit
func ConsumablesKey(sessionID, orderID string) string {
	return idempotency.ScopedKey("packing", sessionID, orderID)
}

// Start opens a packing session over the unpacked orders of a picked route
func (s *PackingService) Start(ctx context.Context, cmd StartPackingCommand) (*PackingSessionDTO, error) {
	var session *domain.PackingSession
	err := inTransaction(ctx, s.tx, "packing.start", tracing.RouteAttributes(cmd.RouteID), func(ctx context.Context) error {
		route, err := loadRoute(ctx, s.routes, cmd.RouteID)
		if err != nil {
			return err
		}
		if err := ensureNoActiveSession(ctx, s.sessions, route.ID); err != nil {
			return err
		}
		ps, err := domain.NewPackingSession(s.ids.NewID(), route, cmd.UserID, cmd.StationID, s.clock())
		if err != nil {
			return err
		}
		if err := s.sessions.Insert(ctx, ps); err != nil {
			return err
		}
		if err := appendEvents(ctx, s.events, ps.GetDomainEvents()); err != nil {
			return err
		}
		session = ps
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.logger.WithContext(ctx).Info("Started packing session",
		"sessionId", session.ID,
		"routeId", session.RouteID,
		"stationId", session.StationID,
		"orders", len(session.OrderIDs),
	)
	return ToPackingSessionDTO(session), nil
}

// Get returns a packing session
func (s *PackingService) Get(ctx context.Context, sessionID string) (*PackingSessionDTO, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ToPackingSessionDTO(session), nil
}

// CurrentOrder returns the order being packed and its outstanding lines
func (s *PackingService) CurrentOrder(ctx context.Context, sessionID string) (*CurrentOrderDTO, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ToCurrentOrderDTO(session), nil
}

// Scan verifies one unit of a barcode against the current order
func (s *PackingService) Scan(ctx context.Context, cmd PackScanCommand) (*PackScanResultDTO, error) {
	var result *domain.PackScanResult
	err := inTransaction(ctx, s.tx, "packing.scan", tracing.SessionAttributes(cmd.SessionID), func(ctx context.Context) error {
		session, err := s.loadSession(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		res, err := session.Scan(cmd.Barcode, s.clock())
		if err != nil {
			return err
		}
		if err := s.sessions.Update(ctx, session); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.metrics.RecordPackScan(errorCode(err))
		return nil, toAppError(err)
	}

	s.metrics.RecordPackScan("ok")
	return &PackScanResultDTO{
		SessionID:     cmd.SessionID,
		OrderID:       result.OrderID,
		Item:          ToPackingItemDTO(result.Item),
		OrderComplete: result.OrderComplete,
	}, nil
}

// CompleteOrder seals a fully scanned order: its staged stock leaves the
// warehouse as PACKING_OUT, consumables are debited and the session moves
// to the next order. Completing a packed order again changes nothing.
func (s *PackingService) CompleteOrder(ctx context.Context, cmd CompleteOrderCommand) (*CompleteOrderResultDTO, error) {
	var (
		session        *domain.PackingSession
		write          *LedgerWrite
		already        bool
		bypassed       bool
		routeCompleted bool
	)
	err := inTransaction(ctx, s.tx, "packing.complete_order", tracing.SessionAttributes(cmd.SessionID), func(ctx context.Context) error {
		ps, err := s.loadSession(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		session, write, bypassed, routeCompleted = ps, nil, false, false

		if already, err = ps.CompleteOrder(cmd.OrderID, s.clock()); err != nil || already {
			return err
		}

		route, err := loadRoute(ctx, s.routes, ps.RouteID)
		if err != nil {
			return err
		}
		ro := route.Order(cmd.OrderID)
		if ro == nil {
			return errors.ErrNotFoundWithID("order", cmd.OrderID)
		}

		now := s.clock()
		staged := route.StagedStock(cmd.OrderID)
		bypassed = len(staged) == 0
		reqs := make([]domain.MovementRequest, 0, len(staged))
		for _, p := range staged {
			reqs = append(reqs, domain.MovementRequest{
				ShelfID:   p.ShelfID,
				ProductID: p.ProductID,
				Type:      domain.MovementPackingOut,
				Direction: domain.DirectionOut,
				Quantity:  p.Quantity,
				OrderID:   cmd.OrderID,
				RouteID:   route.ID,
				UserID:    cmd.UserID,
			})
		}
		if write, err = s.ledger.Apply(ctx, reqs...); err != nil {
			return err
		}

		if len(cmd.Consumables) > 0 && s.consumables != nil {
			if err := s.consumables.Debit(ctx, ConsumablesKey(ps.ID, cmd.OrderID), cmd.OrderID, cmd.Consumables); err != nil {
				return fmt.Errorf("failed to debit consumables: %w", err)
			}
		}

		if routeCompleted, err = route.MarkOrderPacked(cmd.OrderID, now); err != nil {
			return err
		}
		if err := s.routes.Update(ctx, route); err != nil {
			return err
		}
		if err := s.sessions.Update(ctx, ps); err != nil {
			return err
		}

		products, _ := ro.ProductDemand()
		events := []domain.DomainEvent{&domain.PackingOrderPackedEvent{
			SessionID:      ps.ID,
			RouteID:        route.ID,
			OrderID:        cmd.OrderID,
			Products:       len(products),
			LedgerBypassed: bypassed,
			PackedAt:       now,
		}}
		events = append(events, ps.GetDomainEvents()...)
		events = append(events, route.GetDomainEvents()...)
		return appendEvents(ctx, s.events, events)
	})
	if err != nil {
		s.ledger.rejected(ctx, err)
		return nil, toAppError(err)
	}

	result := &CompleteOrderResultDTO{
		SessionID:      session.ID,
		OrderID:        cmd.OrderID,
		AlreadyPacked:  already,
		SessionStatus:  string(session.Status),
		NextOrderID:    session.CurrentOrderID,
		RouteCompleted: routeCompleted,
		LedgerBypassed: bypassed,
		Movements:      []StockMovementDTO{},
	}
	if already {
		return result, nil
	}

	s.ledger.Committed(ctx, write)
	result.Movements = ToStockMovementDTOs(write.Movements)
	if bypassed {
		s.metrics.RecordOverride("pack_without_ledger")
		s.logger.Override(ctx, "pack_without_ledger", "order", cmd.OrderID, cmd.UserID, map[string]any{
			"sessionId": session.ID,
			"routeId":   session.RouteID,
			"reason":    "order was picked manually, no stock was staged",
		})
	}
	writeBackStatus(ctx, s.orders, s.logger, domain.OrderStatusPacked, []string{cmd.OrderID})

	log := s.logger.WithContext(ctx)
	log.Info("Packed order", "sessionId", session.ID, "orderId", cmd.OrderID, "movements", len(write.Movements))
	if routeCompleted {
		log.Info("Route completed", "routeId", session.RouteID)
	}
	return result, nil
}

// Cancel ends an active session. Orders it already packed stay packed.
func (s *PackingService) Cancel(ctx context.Context, sessionID, userID string) (*PackingSessionDTO, error) {
	var (
		session *domain.PackingSession
		changed bool
	)
	err := inTransaction(ctx, s.tx, "packing.cancel", tracing.SessionAttributes(sessionID), func(ctx context.Context) error {
		ps, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return err
		}
		session = ps
		if changed, err = ps.Cancel(s.clock()); err != nil || !changed {
			return err
		}
		if err := s.sessions.Update(ctx, ps); err != nil {
			return err
		}
		return appendEvents(ctx, s.events, ps.GetDomainEvents())
	})
	if err != nil {
		return nil, toAppError(err)
	}

	if changed {
		s.logger.Audit(ctx, "cancel", "packing_session", session.ID, userID, map[string]any{
			"routeId":      session.RouteID,
			"packedOrders": session.PackedOrders,
		})
	}
	return ToPackingSessionDTO(session), nil
}
