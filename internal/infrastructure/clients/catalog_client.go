package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
)

// ProductDTO is a catalog product
type ProductDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	SKU     string `json:"sku"`
}

// CatalogClient resolves products.
// Implements application.ProductCatalog.
type CatalogClient struct {
	svc *service
}

func NewCatalogClient(baseURL string, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *CatalogClient {
	return &CatalogClient{svc: newService("catalog", baseURL, timeout, logger, m)}
}

func (c *CatalogClient) ResolveBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return c.get(ctx, "/api/v1/products/barcode/"+url.PathEscape(barcode))
}

func (c *CatalogClient) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return c.get(ctx, "/api/v1/products/"+url.PathEscape(productID))
}

func (c *CatalogClient) get(ctx context.Context, path string) (*domain.Product, error) {
	var dto ProductDTO
	if err := c.svc.do(ctx, http.MethodGet, path, nil, nil, &dto); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return &domain.Product{ID: dto.ID, Name: dto.Name, Barcode: dto.Barcode, SKU: dto.SKU}, nil
}
