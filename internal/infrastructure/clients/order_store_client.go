package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// maxIDsPerRequest bounds the ids query parameter
const maxIDsPerRequest = 100

// OrderDTO is the order representation served by the order store
type OrderDTO struct {
	ID          string         `json:"id"`
	OrderNumber string         `json:"orderNumber"`
	WarehouseID string         `json:"warehouseId"`
	Status      string         `json:"status"`
	Lines       []OrderLineDTO `json:"lines"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// OrderLineDTO is one order line as served by the order store
type OrderLineDTO struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Barcode     string `json:"barcode"`
	SKU         string `json:"sku"`
	Quantity    int64  `json:"quantity"`
}

// PagedOrdersResponse is a page of orders
type PagedOrdersResponse struct {
	Data       []OrderDTO `json:"data"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalItems int        `json:"totalItems"`
	TotalPages int        `json:"totalPages"`
}

// UpdateOrderStatusRequest is the status write-back body
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (d OrderDTO) toDomain() *domain.Order {
	order := &domain.Order{
		ID:          d.ID,
		OrderNumber: d.OrderNumber,
		WarehouseID: d.WarehouseID,
		Status:      domain.OrderStatus(strings.ToUpper(d.Status)),
		CreatedAt:   d.CreatedAt,
		Lines:       make([]domain.OrderLine, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Barcode:     l.Barcode,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
		})
	}
	return order
}

// OrderStoreClient talks to the order store.
// Implements application.OrderStore.
type OrderStoreClient struct {
	svc *service
}

// NewOrderStoreClient creates a new OrderStoreClient
func NewOrderStoreClient(baseURL string, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *OrderStoreClient {
	return &OrderStoreClient{svc: newService("order-store", baseURL, timeout, logger, m)}
}

// GetOrders fetches the orders among ids that exist. Unknown ids are omitted.
func (c *OrderStoreClient) GetOrders(ctx context.Context, ids []string) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(ids) {
			end = len(ids)
		}

		query := url.Values{}
		query.Set("ids", strings.Join(ids[start:end], ","))
		query.Set("pageSize", strconv.Itoa(end-start))

		var page PagedOrdersResponse
		if err := c.svc.do(ctx, http.MethodGet, "/api/v1/orders?"+query.Encode(), nil, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch orders: %w", err)
		}
		for _, dto := range page.Data {
			orders = append(orders, dto.toDomain())
		}
	}
	return orders, nil
}

// ListFulfillable fetches orders that may still join a route
func (c *OrderStoreClient) ListFulfillable(ctx context.Context, filter application.OrderFilter) ([]*domain.Order, error) {
	query := url.Values{}
	query.Set("status", strings.Join([]string{string(domain.OrderStatusNew), string(domain.OrderStatusProcessing)}, ","))
	if filter.WarehouseID != "" {
		query.Set("warehouseId", filter.WarehouseID)
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Limit > 0 {
		query.Set("pageSize", strconv.Itoa(filter.Limit))
	}

	var page PagedOrdersResponse
	if err := c.svc.do(ctx, http.MethodGet, "/api/v1/orders?"+query.Encode(), nil, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list fulfillable orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(page.Data))
	for _, dto := range page.Data {
		order := dto.toDomain()
		if order.Status.IsFulfillable() {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// UpdateStatus writes an order status back to the order store
func (c *OrderStoreClient) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	path := fmt.Sprintf("/api/v1/orders/%s/status", url.PathEscape(orderID))
	if err := c.svc.do(ctx, http.MethodPatch, path, nil, UpdateOrderStatusRequest{Status: string(status)}, nil); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("order not found: %s", orderID)
		}
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}
