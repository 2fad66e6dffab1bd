package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// DebitConsumablesRequest is the body of a consumable debit
type DebitConsumablesRequest struct {
	OrderID string              `json:"orderId"`
	Items   []ConsumableItemDTO `json:"items"`
}

type ConsumableItemDTO struct {
	ConsumableID string `json:"consumableId"`
	Quantity     int64  `json:"quantity"`
}

// ConsumablesClient debits packaging materials.
// Implements application.ConsumableInventory.
type ConsumablesClient struct {
	svc *service
}

func NewConsumablesClient(baseURL string, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *ConsumablesClient {
	return &ConsumablesClient{svc: newService("consumables", baseURL, timeout, logger, m)}
}

// Debit posts the usage under idempotencyKey, so a replayed completion is not charged twice
func (c *ConsumablesClient) Debit(ctx context.Context, idempotencyKey, orderID string, usage []domain.ConsumableUsage) error {
	if len(usage) == 0 {
		return nil
	}

	body := DebitConsumablesRequest{OrderID: orderID, Items: make([]ConsumableItemDTO, 0, len(usage))}
	for _, u := range usage {
		body.Items = append(body.Items, ConsumableItemDTO{ConsumableID: u.ConsumableID, Quantity: u.Quantity})
	}

	header := http.Header{}
	header.Set("Idempotency-Key", idempotencyKey)
	if err := c.svc.do(ctx, http.MethodPost, "/api/v1/consumables/debit", header, body, nil); err != nil {
		return fmt.Errorf("failed to debit consumables: %w", err)
	}
	return nil
}
