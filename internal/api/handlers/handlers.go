package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// The handler-facing views of the application services. *application.XService
// satisfies each of them.

type ShelfService interface {
	Create(ctx context.Context, cmd application.CreateShelfCommand) (*application.ShelfDTO, error)
	Get(ctx context.Context, shelfID string) (*application.ShelfDTO, error)
	Update(ctx context.Context, cmd application.UpdateShelfCommand) (*application.ShelfDTO, error)
	Move(ctx context.Context, cmd application.MoveShelfCommand) (*application.ShelfDTO, error)
	Delete(ctx context.Context, shelfID, userID string) error
	Tree(ctx context.Context, warehouseID string) ([]application.ShelfNodeDTO, error)
	TotalStock(ctx context.Context, shelfID string) (*application.ShelfTotalStockDTO, error)
}

type LedgerService interface {
	RecordMovement(ctx context.Context, cmd application.RecordMovementCommand) (*application.StockMovementDTO, error)
	CurrentLevel(ctx context.Context, shelfID, productID string) (*application.StockLevelDTO, error)
	ShelfStock(ctx context.Context, shelfID string) (*application.ShelfStockDTO, error)
	History(ctx context.Context, q application.HistoryQuery) (*application.MovementPage, error)
	Reconcile(ctx context.Context, shelfID, productID string) (*application.ReconciliationDTO, error)
	ExportHistory(ctx context.Context, q application.HistoryQuery, w io.Writer) (*application.HistoryExport, error)
}

type TransferService interface {
	Transfer(ctx context.Context, cmd application.TransferCommand) (*application.TransferDTO, error)
}

type RouteService interface {
	Create(ctx context.Context, cmd application.CreateRouteCommand) (*application.RouteDTO, error)
	Get(ctx context.Context, routeID string) (*application.RouteDTO, error)
	List(ctx context.Context, q application.ListRoutesQuery) ([]application.RouteSummaryDTO, int64, error)
	CandidateOrders(ctx context.Context, q application.CandidateOrdersQuery) ([]application.CandidateOrderDTO, error)
	PrintLabel(ctx context.Context, routeID, userID string) (*application.RouteLabelDTO, error)
	Cancel(ctx context.Context, routeID, userID string) (*application.RouteDTO, error)
}

type PickingService interface {
	Progress(ctx context.Context, routeID string) (*application.PickingProgressDTO, error)
	Scan(ctx context.Context, cmd application.PickScanCommand) (*application.PickScanResultDTO, error)
	BulkScan(ctx context.Context, cmd application.BulkScanCommand) (*application.BulkScanResultDTO, error)
	CompleteManually(ctx context.Context, routeID, userID string) (*application.PickingProgressDTO, error)
	Reset(ctx context.Context, routeID, userID string) (*application.PickingProgressDTO, error)
}

type PackingService interface {
	Start(ctx context.Context, cmd application.StartPackingCommand) (*application.PackingSessionDTO, error)
	Get(ctx context.Context, sessionID string) (*application.PackingSessionDTO, error)
	CurrentOrder(ctx context.Context, sessionID string) (*application.CurrentOrderDTO, error)
	Scan(ctx context.Context, cmd application.PackScanCommand) (*application.PackScanResultDTO, error)
	CompleteOrder(ctx context.Context, cmd application.CompleteOrderCommand) (*application.CompleteOrderResultDTO, error)
	Cancel(ctx context.Context, sessionID, userID string) (*application.PackingSessionDTO, error)
}

// RegisterAll mounts every fulfillment route under /api/v1
func RegisterAll(router *gin.Engine, services *application.Services, logger *logging.Logger, mw ...gin.HandlerFunc) {
	v1 := router.Group("/api/v1", mw...)
	NewShelfHandler(services.Shelves, services.Ledger, logger).RegisterRoutes(v1)
	NewStockHandler(services.Ledger, services.Transfer, logger).RegisterRoutes(v1)
	NewRouteHandler(services.Routes, services.Picking, logger).RegisterRoutes(v1)
	NewPackingHandler(services.Packing, logger).RegisterRoutes(v1)
}

func respondError(c *gin.Context, logger *logging.Logger, err error) {
	middleware.NewErrorResponder(c, logger).RespondWithError(err)
}
