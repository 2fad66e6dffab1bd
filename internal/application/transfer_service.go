package application

import (
	"context"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// TransferService moves stock between two shelves atomically
type TransferService struct {
	ledger  *LedgerService
	events  EventSink
	ids     IDGenerator
	tx      Transactor
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(deps Dependencies, ledger *LedgerService) *TransferService {
	deps = deps.withDefaults()
	return &TransferService{
		ledger:  ledger,
		events:  deps.Events,
		ids:     deps.IDs,
		tx:      deps.Transactor,
		metrics: deps.Metrics,
		logger:  deps.Logger.WithComponent("transfer"),
	}
}

// Transfer writes a TRANSFER OUT on the source and a TRANSFER IN on the
// target in one transaction. Both rows share a reference number.
func (s *TransferService) Transfer(ctx context.Context, cmd TransferCommand) (*TransferDTO, error) {
	if cmd.FromShelfID == cmd.ToShelfID {
		return nil, toAppError(domain.ErrSameShelf)
	}
	if cmd.Quantity <= 0 {
		return nil, toAppError(domain.ErrInvalidQuantity)
	}

	reference := cmd.ReferenceNumber
	if reference == "" {
		reference = s.ids.NewReferenceNumber()
	}
	out := domain.MovementRequest{
		ShelfID:         cmd.FromShelfID,
		ProductID:       cmd.ProductID,
		Type:            domain.MovementTransfer,
		Direction:       domain.DirectionOut,
		Quantity:        cmd.Quantity,
		TargetShelfID:   cmd.ToShelfID,
		ReferenceNumber: reference,
		Notes:           cmd.Notes,
		UserID:          cmd.UserID,
	}
	in := out
	in.ShelfID = cmd.ToShelfID
	in.Direction = domain.DirectionIn
	in.TargetShelfID = ""
	in.SourceShelfID = cmd.FromShelfID

	var write *LedgerWrite
	err := inTransaction(ctx, s.tx, "stock.transfer", tracing.TransferAttributes(cmd.FromShelfID, cmd.ToShelfID, cmd.ProductID), func(ctx context.Context) error {
		w, err := s.ledger.Apply(ctx, out, in)
		if err != nil {
			return err
		}
		outRow, inRow := w.Movements[0], w.Movements[1]
		if err := s.events.Append(ctx, &domain.StockTransferredEvent{
			FromShelfID:     cmd.FromShelfID,
			ToShelfID:       cmd.ToShelfID,
			ProductID:       cmd.ProductID,
			Quantity:        cmd.Quantity,
			OutMovementID:   outRow.ID,
			InMovementID:    inRow.ID,
			ReferenceNumber: reference,
			UserID:          cmd.UserID,
			TransferredAt:   inRow.CreatedAt,
		}); err != nil {
			return err
		}
		write = w
		return nil
	})
	s.metrics.RecordTransfer(err == nil)
	if err != nil {
		s.ledger.rejected(ctx, err)
		return nil, toAppError(err)
	}
	s.ledger.Committed(ctx, write)

	s.logger.WithContext(ctx).Info("Transferred stock",
		"fromShelfId", cmd.FromShelfID,
		"toShelfId", cmd.ToShelfID,
		"productId", cmd.ProductID,
		"quantity", cmd.Quantity,
		"referenceNumber", reference,
	)
	return &TransferDTO{
		ReferenceNumber: reference,
		ProductID:       cmd.ProductID,
		Quantity:        cmd.Quantity,
		Out:             ToStockMovementDTO(write.Movements[0]),
		In:              ToStockMovementDTO(write.Movements[1]),
	}, nil
}
