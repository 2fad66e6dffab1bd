package handlers

import (
	"context"
	"io"

	"github.com/wms-platform/fulfillment-service/internal/application"
)

type mockShelfService struct {
	createFn     func(ctx context.Context, cmd application.CreateShelfCommand) (*application.ShelfDTO, error)
	getFn        func(ctx context.Context, shelfID string) (*application.ShelfDTO, error)
	updateFn     func(ctx context.Context, cmd application.UpdateShelfCommand) (*application.ShelfDTO, error)
	moveFn       func(ctx context.Context, cmd application.MoveShelfCommand) (*application.ShelfDTO, error)
	deleteFn     func(ctx context.Context, shelfID, userID string) error
	treeFn       func(ctx context.Context, warehouseID string) ([]application.ShelfNodeDTO, error)
	totalStockFn func(ctx context.Context, shelfID string) (*application.ShelfTotalStockDTO, error)
}

func (m *mockShelfService) Create(ctx context.Context, cmd application.CreateShelfCommand) (*application.ShelfDTO, error) {
	if m.createFn == nil {
		panic("Create not implemented")
	}
	return m.createFn(ctx, cmd)
}

func (m *mockShelfService) Get(ctx context.Context, shelfID string) (*application.ShelfDTO, error) {
	if m.getFn == nil {
		panic("Get not implemented")
	}
	return m.getFn(ctx, shelfID)
}

func (m *mockShelfService) Update(ctx context.Context, cmd application.UpdateShelfCommand) (*application.ShelfDTO, error) {
	if m.updateFn == nil {
		panic("Update not implemented")
	}
	return m.updateFn(ctx, cmd)
}

func (m *mockShelfService) Move(ctx context.Context, cmd application.MoveShelfCommand) (*application.ShelfDTO, error) {
	if m.moveFn == nil {
		panic("Move not implemented")
	}
	return m.moveFn(ctx, cmd)
}

func (m *mockShelfService) Delete(ctx context.Context, shelfID, userID string) error {
	if m.deleteFn == nil {
		panic("Delete not implemented")
	}
	return m.deleteFn(ctx, shelfID, userID)
}

func (m *mockShelfService) Tree(ctx context.Context, warehouseID string) ([]application.ShelfNodeDTO, error) {
	if m.treeFn == nil {
		panic("Tree not implemented")
	}
	return m.treeFn(ctx, warehouseID)
}

func (m *mockShelfService) TotalStock(ctx context.Context, shelfID string) (*application.ShelfTotalStockDTO, error) {
	if m.totalStockFn == nil {
		panic("TotalStock not implemented")
	}
	return m.totalStockFn(ctx, shelfID)
}

type mockLedgerService struct {
	recordFn     func(ctx context.Context, cmd application.RecordMovementCommand) (*application.StockMovementDTO, error)
	levelFn      func(ctx context.Context, shelfID, productID string) (*application.StockLevelDTO, error)
	shelfStockFn func(ctx context.Context, shelfID string) (*application.ShelfStockDTO, error)
	historyFn    func(ctx context.Context, q application.HistoryQuery) (*application.MovementPage, error)
	reconcileFn  func(ctx context.Context, shelfID, productID string) (*application.ReconciliationDTO, error)
	exportFn     func(ctx context.Context, q application.HistoryQuery, w io.Writer) (*application.HistoryExport, error)
}

func (m *mockLedgerService) RecordMovement(ctx context.Context, cmd application.RecordMovementCommand) (*application.StockMovementDTO, error) {
	if m.recordFn == nil {
		panic("RecordMovement not implemented")
	}
	return m.recordFn(ctx, cmd)
}

func (m *mockLedgerService) CurrentLevel(ctx context.Context, shelfID, productID string) (*application.StockLevelDTO, error) {
	if m.levelFn == nil {
		panic("CurrentLevel not implemented")
	}
	return m.levelFn(ctx, shelfID, productID)
}

func (m *mockLedgerService) ShelfStock(ctx context.Context, shelfID string) (*application.ShelfStockDTO, error) {
	if m.shelfStockFn == nil {
		panic("ShelfStock not implemented")
	}
	return m.shelfStockFn(ctx, shelfID)
}

func (m *mockLedgerService) History(ctx context.Context, q application.HistoryQuery) (*application.MovementPage, error) {
	if m.historyFn == nil {
		panic("History not implemented")
	}
	return m.historyFn(ctx, q)
}

func (m *mockLedgerService) Reconcile(ctx context.Context, shelfID, productID string) (*application.ReconciliationDTO, error) {
	if m.reconcileFn == nil {
		panic("Reconcile not implemented")
	}
	return m.reconcileFn(ctx, shelfID, productID)
}

func (m *mockLedgerService) ExportHistory(ctx context.Context, q application.HistoryQuery, w io.Writer) (*application.HistoryExport, error) {
	if m.exportFn == nil {
		panic("ExportHistory not implemented")
	}
	return m.exportFn(ctx, q, w)
}

type mockTransferService struct {
	transferFn func(ctx context.Context, cmd application.TransferCommand) (*application.TransferDTO, error)
}

func (m *mockTransferService) Transfer(ctx context.Context, cmd application.TransferCommand) (*application.TransferDTO, error) {
	if m.transferFn == nil {
		panic("Transfer not implemented")
	}
	return m.transferFn(ctx, cmd)
}

type mockRouteService struct {
	createFn     func(ctx context.Context, cmd application.CreateRouteCommand) (*application.RouteDTO, error)
	getFn        func(ctx context.Context, routeID string) (*application.RouteDTO, error)
	listFn       func(ctx context.Context, q application.ListRoutesQuery) ([]application.RouteSummaryDTO, int64, error)
	candidatesFn func(ctx context.Context, q application.CandidateOrdersQuery) ([]application.CandidateOrderDTO, error)
	printFn      func(ctx context.Context, routeID, userID string) (*application.RouteLabelDTO, error)
	cancelFn     func(ctx context.Context, routeID, userID string) (*application.RouteDTO, error)
}

func (m *mockRouteService) Create(ctx context.Context, cmd application.CreateRouteCommand) (*application.RouteDTO, error) {
	if m.createFn == nil {
		panic("Create not implemented")
	}
	return m.createFn(ctx, cmd)
}

func (m *mockRouteService) Get(ctx context.Context, routeID string) (*application.RouteDTO, error) {
	if m.getFn == nil {
		panic("Get not implemented")
	}
	return m.getFn(ctx, routeID)
}

func (m *mockRouteService) List(ctx context.Context, q application.ListRoutesQuery) ([]application.RouteSummaryDTO, int64, error) {
	if m.listFn == nil {
		panic("List not implemented")
	}
	return m.listFn(ctx, q)
}

func (m *mockRouteService) CandidateOrders(ctx context.Context, q application.CandidateOrdersQuery) ([]application.CandidateOrderDTO, error) {
	if m.candidatesFn == nil {
		panic("CandidateOrders not implemented")
	}
	return m.candidatesFn(ctx, q)
}

func (m *mockRouteService) PrintLabel(ctx context.Context, routeID, userID string) (*application.RouteLabelDTO, error) {
	if m.printFn == nil {
		panic("PrintLabel not implemented")
	}
	return m.printFn(ctx, routeID, userID)
}

func (m *mockRouteService) Cancel(ctx context.Context, routeID, userID string) (*application.RouteDTO, error) {
	if m.cancelFn == nil {
		panic("Cancel not implemented")
	}
	return m.cancelFn(ctx, routeID, userID)
}

type mockPickingService struct {
	progressFn func(ctx context.Context, routeID string) (*application.PickingProgressDTO, error)
	scanFn     func(ctx context.Context, cmd application.PickScanCommand) (*application.PickScanResultDTO, error)
	bulkFn     func(ctx context.Context, cmd application.BulkScanCommand) (*application.BulkScanResultDTO, error)
	completeFn func(ctx context.Context, routeID, userID string) (*application.PickingProgressDTO, error)
	resetFn    func(ctx context.Context, routeID, userID string) (*application.PickingProgressDTO, error)
}

func (m *mockPickingService) Progress(ctx context.Context, routeID string) (*application.PickingProgressDTO, error) {
	if m.progressFn == nil {
		panic("Progress not implemented")
	}
	return m.progressFn(ctx, routeID)
}

func (m *mockPickingService) Scan(ctx context.Context, cmd application.PickScanCommand) (*application.PickScanResultDTO, error) {
	if m.scanFn == nil {
		panic("Scan not implemented")
	}
	return m.scanFn(ctx, cmd)
}

func (m *mockPickingService) BulkScan(ctx context.Context, cmd application.BulkScanCommand) (*application.BulkScanResultDTO, error) {
	if m.bulkFn == nil {
		panic("BulkScan not implemented")
	}
	return m.bulkFn(ctx, cmd)
}

func (m *mockPickingService) CompleteManually(ctx context.Context, routeID, userID string) (*application.PickingProgressDTO, error) {
	if m.completeFn == nil {
		panic("CompleteManually not implemented")
	}
	return m.completeFn(ctx, routeID, userID)
}

func (m *mockPickingService) Reset(ctx context.Context, routeID, userID string) (*application.PickingProgressDTO, error) {
	if m.resetFn == nil {
		panic("Reset not implemented")
	}
	return m.resetFn(ctx, routeID, userID)
}

type mockPackingService struct {
	startFn    func(ctx context.Context, cmd application.StartPackingCommand) (*application.PackingSessionDTO, error)
	getFn      func(ctx context.Context, sessionID string) (*application.PackingSessionDTO, error)
	currentFn  func(ctx context.Context, sessionID string) (*application.CurrentOrderDTO, error)
	scanFn     func(ctx context.Context, cmd application.PackScanCommand) (*application.PackScanResultDTO, error)
	completeFn func(ctx context.Context, cmd application.CompleteOrderCommand) (*application.CompleteOrderResultDTO, error)
	cancelFn   func(ctx context.Context, sessionID, userID string) (*application.PackingSessionDTO, error)
}

func (m *mockPackingService) Start(ctx context.Context, cmd application.StartPackingCommand) (*application.PackingSessionDTO, error) {
	if m.startFn == nil {
		panic("Start not implemented")
	}
	return m.startFn(ctx, cmd)
}

func (m *mockPackingService) Get(ctx context.Context, sessionID string) (*application.PackingSessionDTO, error) {
	if m.getFn == nil {
		panic("Get not implemented")
	}
	return m.getFn(ctx, sessionID)
}

func (m *mockPackingService) CurrentOrder(ctx context.Context, sessionID string) (*application.CurrentOrderDTO, error) {
	if m.currentFn == nil {
		panic("CurrentOrder not implemented")
	}
	return m.currentFn(ctx, sessionID)
}

func (m *mockPackingService) Scan(ctx context.Context, cmd application.PackScanCommand) (*application.PackScanResultDTO, error) {
	if m.scanFn == nil {
		panic("Scan not implemented")
	}
	return m.scanFn(ctx, cmd)
}

func (m *mockPackingService) CompleteOrder(ctx context.Context, cmd application.CompleteOrderCommand) (*application.CompleteOrderResultDTO, error) {
	if m.completeFn == nil {
		panic("CompleteOrder not implemented")
	}
	return m.completeFn(ctx, cmd)
}

func (m *mockPackingService) Cancel(ctx context.Context, sessionID, userID string) (*application.PackingSessionDTO, error) {
	if m.cancelFn == nil {
		panic("Cancel not implemented")
	}
	return m.cancelFn(ctx, sessionID, userID)
}
