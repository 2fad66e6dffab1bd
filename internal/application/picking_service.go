package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// PickingService credits scans to routes and stages the picked stock
type PickingService struct {
	routes   domain.RouteRepository
	sessions domain.PackingSessionRepository
	orders   OrderStore
	ledger   *LedgerService
	sourcer  stockSourcer
	events   EventSink
	tx       Transactor
	metrics  *metrics.Metrics
	logger   *logging.Logger
	clock    Clock
}

// NewPickingService creates a new PickingService
func NewPickingService(deps Dependencies, ledger *LedgerService) *PickingService {
	deps = deps.withDefaults()
	return &PickingService{
		routes:   deps.Routes,
		sessions: deps.Sessions,
		orders:   deps.Orders,
		ledger:   ledger,
		sourcer:  stockSourcer{shelves: deps.Shelves, stock: deps.Stock},
		events:   deps.Events,
		tx:       deps.Transactor,
		metrics:  deps.Metrics,
		logger:   deps.Logger.WithComponent("picking"),
		clock:    deps.Clock,
	}
}

// Progress returns the picking state of a route
func (s *PickingService) Progress(ctx context.Context, routeID string) (*PickingProgressDTO, error) {
	route, err := loadRoute(ctx, s.routes, routeID)
	if err != nil {
		return nil, err
	}
	return ToPickingProgressDTO(route), nil
}

// Scan credits quantity units of a barcode to the route. Orders completed
// by the scan have their stock moved from the pick shelves to the packing
// staging shelf in the same transaction.
func (s *PickingService) Scan(ctx context.Context, cmd PickScanCommand) (*PickScanResultDTO, error) {
	qty := cmd.Quantity
	if qty == 0 {
		qty = 1
	}

	var (
		route  *domain.Route
		result *domain.PickScanResult
		write  *LedgerWrite
	)
	err := inTransaction(ctx, s.tx, "picking.scan", tracing.RouteAttributes(cmd.RouteID), func(ctx context.Context) error {
		r, err := loadRoute(ctx, s.routes, cmd.RouteID)
		if err != nil {
			return err
		}
		res, err := r.Scan(cmd.Barcode, qty, s.clock())
		if err != nil {
			return err
		}

		w := &LedgerWrite{}
		for _, orderID := range res.CompletedOrders {
			picks, reqs, err := s.sourcer.stageOrder(ctx, r, orderID, cmd.UserID)
			if err != nil {
				return err
			}
			staged, err := s.ledger.Apply(ctx, reqs...)
			if err != nil {
				return err
			}
			w.merge(staged)
			if err := r.RecordPicks(orderID, picks); err != nil {
				return err
			}
		}

		if err := s.routes.Update(ctx, r); err != nil {
			return err
		}
		if err := appendEvents(ctx, s.events, r.GetDomainEvents()); err != nil {
			return err
		}
		route, result, write = r, res, w
		return nil
	})
	if err != nil {
		s.metrics.RecordPickScan(errorCode(err))
		s.ledger.rejected(ctx, err)
		return nil, toAppError(err)
	}

	s.metrics.RecordPickScan("ok")
	s.ledger.Committed(ctx, write)
	writeBackStatus(ctx, s.orders, s.logger, domain.OrderStatusPicked, result.CompletedOrders)

	log := s.logger.WithContext(ctx)
	log.Debug("Picking scan", "routeId", route.ID, "barcode", cmd.Barcode, "quantity", qty, "picked", result.PickedQuantity)
	if result.RoutePicked {
		log.Info("Route fully picked", "routeId", route.ID, "items", route.PickedItemCount)
	}
	return ToPickScanResultDTO(route, result), nil
}

// BulkScan applies single-unit scans in order. A failing scan is recorded
// and the batch continues.
func (s *PickingService) BulkScan(ctx context.Context, cmd BulkScanCommand) (*BulkScanResultDTO, error) {
	if _, err := loadRoute(ctx, s.routes, cmd.RouteID); err != nil {
		return nil, err
	}

	result := &BulkScanResultDTO{RouteID: cmd.RouteID, Failures: []BulkScanFailureDTO{}}
	for i, barcode := range cmd.Barcodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := s.Scan(ctx, PickScanCommand{RouteID: cmd.RouteID, Barcode: barcode, Quantity: 1, UserID: cmd.UserID})
		if err == nil {
			result.Scanned++
			continue
		}

		appErr := errors.FromError(err)
		if appErr.HTTPStatus >= 500 {
			return nil, err
		}
		result.Failed++
		result.Failures = append(result.Failures, BulkScanFailureDTO{
			Index:   i,
			Barcode: barcode,
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
	}

	progress, err := s.Progress(ctx, cmd.RouteID)
	if err != nil {
		return nil, err
	}
	result.Progress = progress

	s.logger.WithContext(ctx).Info("Bulk picking scan",
		"routeId", cmd.RouteID,
		"scanned", result.Scanned,
		"failed", result.Failed,
	)
	return result, nil
}

// CompleteManually force-completes the remaining picks without moving
// stock. It is an administrative override and logged as one.
func (s *PickingService) CompleteManually(ctx context.Context, routeID, userID string) (*PickingProgressDTO, error) {
	var (
		route  *domain.Route
		forced []string
	)
	err := inTransaction(ctx, s.tx, "picking.complete_manually", tracing.RouteAttributes(routeID), func(ctx context.Context) error {
		r, err := loadRoute(ctx, s.routes, routeID)
		if err != nil {
			return err
		}
		alreadyPicked := r.Status == domain.RouteStatusPicked
		f, err := r.CompleteManually(userID, s.clock())
		if err != nil {
			return err
		}
		route, forced = r, f
		if alreadyPicked {
			return nil
		}
		if err := s.routes.Update(ctx, r); err != nil {
			return err
		}
		return appendEvents(ctx, s.events, r.GetDomainEvents())
	})
	if err != nil {
		return nil, toAppError(err)
	}

	if len(forced) > 0 {
		s.metrics.RecordOverride("complete_picking")
		s.logger.Override(ctx, "complete_picking", "route", route.ID, userID, map[string]any{
			"forcedOrders":  forced,
			"stockDeducted": false,
		})
		writeBackStatus(ctx, s.orders, s.logger, domain.OrderStatusPicked, forced)
	}
	return ToPickingProgressDTO(route), nil
}

// Reset zeroes picking progress. Stock already staged for picked orders is
// returned to its source shelves with ADJUSTMENT movements.
func (s *PickingService) Reset(ctx context.Context, routeID, userID string) (*PickingProgressDTO, error) {
	var (
		route       *domain.Route
		write       *LedgerWrite
		compensated []domain.OrderPicks
		wasPicked   []string
	)
	err := inTransaction(ctx, s.tx, "picking.reset", tracing.RouteAttributes(routeID), func(ctx context.Context) error {
		r, err := loadRoute(ctx, s.routes, routeID)
		if err != nil {
			return err
		}
		if err := ensureNoActiveSession(ctx, s.sessions, routeID); err != nil {
			return err
		}

		var picked []string
		for _, ro := range r.Orders {
			if ro.PickStatus == domain.PickStatusPicked {
				picked = append(picked, ro.OrderID)
			}
		}
		compensate, err := r.Reset(userID, s.clock())
		if err != nil {
			return err
		}
		w, err := s.ledger.Apply(ctx, releasePicks(compensate, domain.MovementAdjustment, r.ID, userID, "picking reset")...)
		if err != nil {
			return fmt.Errorf("failed to compensate picked stock: %w", err)
		}
		if err := s.routes.Update(ctx, r); err != nil {
			return err
		}
		if err := appendEvents(ctx, s.events, r.GetDomainEvents()); err != nil {
			return err
		}
		route, write, compensated, wasPicked = r, w, compensate, picked
		return nil
	})
	if err != nil {
		s.ledger.rejected(ctx, err)
		return nil, toAppError(err)
	}

	s.ledger.Committed(ctx, write)
	s.metrics.RecordOverride("reset_picking")
	orderIDs := make([]string, 0, len(compensated))
	for _, op := range compensated {
		orderIDs = append(orderIDs, op.OrderID)
	}
	s.logger.Override(ctx, "reset_picking", "route", route.ID, userID, map[string]any{
		"compensatedOrders": orderIDs,
		"movements":         len(write.Movements),
	})
	writeBackStatus(ctx, s.orders, s.logger, domain.OrderStatusProcessing, wasPicked)
	return ToPickingProgressDTO(route), nil
}
