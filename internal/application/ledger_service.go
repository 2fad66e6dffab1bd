package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// MaxExportRows caps the rows rendered into one history export
const MaxExportRows = 10000

// LedgerService is the single entry point for stock mutations. Transfer,
// picking and packing call Apply inside their own transactions; operators
// use RecordMovement for the manual movement types.
type LedgerService struct {
	shelves  domain.ShelfRepository
	stock    domain.StockRepository
	events   EventSink
	ids      IDGenerator
	catalog  ProductCatalog
	cache    StockCache
	exporter HistoryExporter
	tx       Transactor
	metrics  *metrics.Metrics
	logger   *logging.Logger
	clock    Clock
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(deps Dependencies) *LedgerService {
	deps = deps.withDefaults()
	return &LedgerService{
		shelves:  deps.Shelves,
		stock:    deps.Stock,
		events:   deps.Events,
		ids:      deps.IDs,
		catalog:  deps.Catalog,
		cache:    deps.Cache,
		exporter: deps.Exporter,
		tx:       deps.Transactor,
		metrics:  deps.Metrics,
		logger:   deps.Logger.WithComponent("ledger"),
		clock:    deps.Clock,
	}
}

// LedgerWrite is what a set of applied movements produced
type LedgerWrite struct {
	Movements []*domain.StockMovement
	affected  map[string]struct{}
}

func (w *LedgerWrite) merge(other *LedgerWrite) {
	if other == nil {
		return
	}
	w.Movements = append(w.Movements, other.Movements...)
	if w.affected == nil {
		w.affected = make(map[string]struct{})
	}
	for id := range other.affected {
		w.affected[id] = struct{}{}
	}
}

// AffectedShelves returns the shelves whose subtree totals changed
func (w *LedgerWrite) AffectedShelves() []string {
	out := make([]string, 0, len(w.affected))
	for id := range w.affected {
		out = append(out, id)
	}
	return out
}

// Apply records movements in order. It must run inside the caller's
// transaction: a failing movement aborts the whole set.
func (s *LedgerService) Apply(ctx context.Context, reqs ...domain.MovementRequest) (*LedgerWrite, error) {
	write := &LedgerWrite{affected: make(map[string]struct{})}
	if len(reqs) == 0 {
		return write, nil
	}

	shelfIDs := make([]string, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[req.ShelfID]; !ok {
			seen[req.ShelfID] = struct{}{}
			shelfIDs = append(shelfIDs, req.ShelfID)
		}
	}

	shelves, err := s.shelves.FindByIDs(ctx, shelfIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load shelves: %w", err)
	}
	byID := make(map[string]*domain.Shelf, len(shelves))
	for _, shelf := range shelves {
		byID[shelf.ID] = shelf
	}
	for _, id := range shelfIDs {
		if _, ok := byID[id]; !ok {
			return nil, errors.ErrNotFoundWithID("shelf", id)
		}
	}

	now := s.clock()
	for _, req := range reqs {
		if req.ReferenceNumber == "" {
			req.ReferenceNumber = s.ids.NewReferenceNumber()
		}
		id, seq := s.ids.NewMovementID()
		movement := domain.NewStockMovement(id, seq, req, now)

		if err := s.stock.Apply(ctx, movement); err != nil {
			return nil, err
		}
		if err := s.events.Append(ctx, movement.RecordedEvent()); err != nil {
			return nil, fmt.Errorf("failed to append movement event: %w", err)
		}

		write.Movements = append(write.Movements, movement)
		shelf := byID[req.ShelfID]
		write.affected[shelf.ID] = struct{}{}
		for _, ancestor := range shelf.AncestorIDs {
			write.affected[ancestor] = struct{}{}
		}
	}
	return write, nil
}

// Committed runs the post-commit bookkeeping of a write
func (s *LedgerService) Committed(ctx context.Context, write *LedgerWrite) {
	if write == nil {
		return
	}
	for _, m := range write.Movements {
		s.metrics.RecordStockMovement(string(m.Type), string(m.Direction), m.Quantity)
	}
	s.invalidate(ctx, write.AffectedShelves())
}

func (s *LedgerService) invalidate(ctx context.Context, shelfIDs []string) {
	if s.cache == nil || len(shelfIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, shelfIDs...); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate stock cache", "shelves", len(shelfIDs))
	}
}

// rejected records a failed mutation before it is returned
func (s *LedgerService) rejected(ctx context.Context, err error) {
	var insufficient *domain.InsufficientStockError
	if stderrors.As(err, &insufficient) {
		s.metrics.RecordStockRejection("insufficient_stock")
		s.logger.WithContext(ctx).Warn("Stock movement rejected",
			"shelfId", insufficient.ShelfID,
			"productId", insufficient.ProductID,
			"requested", insufficient.Requested,
			"available", insufficient.Available,
		)
	}
}

// RecordMovement records one movement on behalf of an operator or an
// upstream system. Transfers go through TransferService.
func (s *LedgerService) RecordMovement(ctx context.Context, cmd RecordMovementCommand) (*StockMovementDTO, error) {
	if cmd.Type.IsPaired() {
		return nil, errors.ErrValidation(fmt.Sprintf("%s movements are recorded through the transfer operation", cmd.Type))
	}

	req := domain.MovementRequest{
		ShelfID:         cmd.ShelfID,
		ProductID:       cmd.ProductID,
		Type:            cmd.Type,
		Direction:       cmd.Direction,
		Quantity:        cmd.Quantity,
		OrderID:         cmd.OrderID,
		RouteID:         cmd.RouteID,
		ReferenceNumber: cmd.ReferenceNumber,
		Notes:           cmd.Notes,
		UserID:          cmd.UserID,
	}
	if err := req.Validate(); err != nil {
		return nil, toAppError(err)
	}
	if err := s.ensureProduct(ctx, cmd.ProductID); err != nil {
		return nil, err
	}

	var write *LedgerWrite
	err := inTransaction(ctx, s.tx, "ledger.record_movement", tracing.StockAttributes(cmd.ShelfID, cmd.ProductID), func(ctx context.Context) error {
		w, err := s.Apply(ctx, req)
		if err != nil {
			return err
		}
		write = w
		return nil
	})
	if err != nil {
		s.rejected(ctx, err)
		return nil, toAppError(err)
	}
	s.Committed(ctx, write)

	m := write.Movements[0]
	s.logger.WithContext(ctx).Info("Recorded stock movement",
		"movementId", m.ID,
		"shelfId", m.ShelfID,
		"productId", m.ProductID,
		"type", m.Type,
		"direction", m.Direction,
		"quantity", m.Quantity,
		"quantityAfter", m.QuantityAfter,
	)
	dto := ToStockMovementDTO(m)
	return &dto, nil
}

func (s *LedgerService) ensureProduct(ctx context.Context, productID string) error {
	if s.catalog == nil {
		return nil
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to look up product", "productId", productID)
		return errors.FromError(err)
	}
	if product == nil {
		return errors.ErrNotFoundWithID("product", productID)
	}
	return nil
}

func (s *LedgerService) ensureShelf(ctx context.Context, shelfID string) (*domain.Shelf, error) {
	shelf, err := s.shelves.FindByID(ctx, shelfID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get shelf", "shelfId", shelfID)
		return nil, fmt.Errorf("failed to get shelf: %w", err)
	}
	if shelf == nil {
		return nil, errors.ErrNotFoundWithID("shelf", shelfID)
	}
	return shelf, nil
}

// CurrentLevel returns the quantity of a product on a shelf
func (s *LedgerService) CurrentLevel(ctx context.Context, shelfID, productID string) (*StockLevelDTO, error) {
	if _, err := s.ensureShelf(ctx, shelfID); err != nil {
		return nil, err
	}
	qty, err := s.stock.Level(ctx, shelfID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stock level: %w", err)
	}
	return &StockLevelDTO{ShelfID: shelfID, ProductID: productID, Quantity: qty}, nil
}

// ShelfStock lists the levels held directly on a shelf
func (s *LedgerService) ShelfStock(ctx context.Context, shelfID string) (*ShelfStockDTO, error) {
	if _, err := s.ensureShelf(ctx, shelfID); err != nil {
		return nil, err
	}
	levels, err := s.stock.LevelsByShelves(ctx, []string{shelfID})
	if err != nil {
		return nil, fmt.Errorf("failed to read shelf stock: %w", err)
	}

	dto := &ShelfStockDTO{ShelfID: shelfID, Levels: make([]StockLevelDTO, 0, len(levels))}
	for _, l := range levels {
		dto.Levels = append(dto.Levels, StockLevelDTO{ShelfID: l.ShelfID, ProductID: l.ProductID, Quantity: l.Quantity})
		dto.Total += l.Quantity
	}
	return dto, nil
}

func (q HistoryQuery) filter() (domain.MovementFilter, error) {
	if q.Type != "" && !q.Type.IsValid() {
		return domain.MovementFilter{}, domain.ErrInvalidMovementType
	}
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return domain.MovementFilter{
		ShelfID:   q.ShelfID,
		ProductID: q.ProductID,
		OrderID:   q.OrderID,
		RouteID:   q.RouteID,
		Type:      q.Type,
		From:      q.From,
		To:        q.To,
		Offset:    (page - 1) * size,
		Limit:     size,
	}, nil
}

// History returns ledger rows matching the query, newest first
func (s *LedgerService) History(ctx context.Context, q HistoryQuery) (*MovementPage, error) {
	filter, err := q.filter()
	if err != nil {
		return nil, toAppError(err)
	}
	movements, total, err := s.stock.History(ctx, filter)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to query stock history")
		return nil, fmt.Errorf("failed to query stock history: %w", err)
	}
	return &MovementPage{
		Movements: ToStockMovementDTOs(movements),
		Page:      filter.Offset/filter.Limit + 1,
		PageSize:  filter.Limit,
		Total:     total,
	}, nil
}

// Reconcile recomputes the ledger sum of a (shelf, product) pair and compares
// it with the materialized level. Both reads share one snapshot.
func (s *LedgerService) Reconcile(ctx context.Context, shelfID, productID string) (*ReconciliationDTO, error) {
	if _, err := s.ensureShelf(ctx, shelfID); err != nil {
		return nil, err
	}

	var result *domain.Reconciliation
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		sum, count, err := s.stock.LedgerSum(ctx, shelfID, productID)
		if err != nil {
			return err
		}
		level, err := s.stock.Level(ctx, shelfID, productID)
		if err != nil {
			return err
		}
		result = domain.NewReconciliation(shelfID, productID, sum, level, count)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile stock: %w", err)
	}

	if !result.Consistent {
		s.logger.WithContext(ctx).Error("Ledger and stock level disagree",
			"shelfId", shelfID,
			"productId", productID,
			"ledgerSum", result.LedgerSum,
			"materialized", result.Materialized,
		)
	}
	return ToReconciliationDTO(result), nil
}

// HistoryExport describes a rendered history document
type HistoryExport struct {
	ContentType string
	FileName    string
	Rows        int
	Truncated   bool
}

// ExportHistory renders up to MaxExportRows ledger rows matching q into w
func (s *LedgerService) ExportHistory(ctx context.Context, q HistoryQuery, w io.Writer) (*HistoryExport, error) {
	if s.exporter == nil {
		return nil, errors.ErrServiceUnavailable("history export")
	}
	filter, err := q.filter()
	if err != nil {
		return nil, toAppError(err)
	}
	filter.Offset, filter.Limit = 0, MaxExportRows

	movements, total, err := s.stock.History(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock history: %w", err)
	}
	if err := s.exporter.Export(w, movements); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to render history export")
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	export := &HistoryExport{
		ContentType: s.exporter.ContentType(),
		FileName:    fmt.Sprintf("stock-movements-%s.%s", s.clock().Format("20060102-150405"), s.exporter.FileExtension()),
		Rows:        len(movements),
		Truncated:   total > int64(len(movements)),
	}
	if export.Truncated {
		s.logger.WithContext(ctx).Warn("History export truncated", "rows", export.Rows, "total", total)
	}
	return export, nil
}
