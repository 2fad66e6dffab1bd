package domain

import "time"

// OrderStatus is the status of an order as held by the Order Store
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusPicked     OrderStatus = "PICKED"
	OrderStatusPacked     OrderStatus = "PACKED"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// IsFulfillable reports whether an order in this status can join a route
func (s OrderStatus) IsFulfillable() bool {
	return s == OrderStatusNew || s == OrderStatusProcessing
}

// Order is the read model of an order fetched from the Order Store
type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	WarehouseID string      `json:"warehouseId"`
	Status      OrderStatus `json:"status"`
	Lines       []OrderLine `json:"lines"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// OrderLine is one line item of an order
type OrderLine struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Barcode     string `json:"barcode"`
	SKU         string `json:"sku"`
	Quantity    int64  `json:"quantity"`
}

// Product is the catalog identity a barcode resolves to
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	SKU     string `json:"sku"`
}

// ConsumableUsage is one packaging material used for an order
type ConsumableUsage struct {
	ConsumableID string `json:"consumableId"`
	Quantity     int64  `json:"quantity"`
}
