package cloudevents

import (
	"time"
)

// Event types emitted by the fulfillment service
const (
	// Stock ledger
	StockMovementRecorded = "wms.stock.movement-recorded"
	StockTransferred      = "wms.stock.transferred"

	// Shelf directory
	ShelfCreated = "wms.shelf.created"
	ShelfUpdated = "wms.shelf.updated"
	ShelfMoved   = "wms.shelf.moved"
	ShelfDeleted = "wms.shelf.deleted"

	// Routes and picking
	RouteCreated              = "wms.route.created"
	RouteOrderPicked          = "wms.route.order-picked"
	RoutePicked               = "wms.route.picked"
	RoutePickingForceComplete = "wms.route.picking-force-completed"
	RoutePickingReset         = "wms.route.picking-reset"
	RouteLabelPrinted         = "wms.route.label-printed"
	RouteCompleted            = "wms.route.completed"
	RouteCancelled            = "wms.route.cancelled"

	// Packing
	PackingSessionStarted   = "wms.packing.session-started"
	PackingOrderPacked      = "wms.packing.order-packed"
	PackingSessionCompleted = "wms.packing.session-completed"
	PackingSessionCancelled = "wms.packing.session-cancelled"
)

// Source is the CloudEvents source of every event this service emits
const Source = "/wms/fulfillment-service"

// Extension attribute names
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtRouteID       = "wmsrouteid"
	ExtOrderID       = "wmsorderid"
	ExtWarehouseID   = "wmswarehouseid"
)

// WMSCloudEvent represents a CloudEvents v1.0 event with the WMS extensions
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	RouteID       string `json:"wmsrouteid,omitempty"`
	OrderID       string `json:"wmsorderid,omitempty"`
	WarehouseID   string `json:"wmswarehouseid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
}

// Extensions returns the populated extension attributes keyed by CloudEvents name
func (e *WMSCloudEvent) Extensions() map[string]string {
	ext := make(map[string]string, 4)
	if e.CorrelationID != "" {
		ext[ExtCorrelationID] = e.CorrelationID
	}
	if e.RouteID != "" {
		ext[ExtRouteID] = e.RouteID
	}
	if e.OrderID != "" {
		ext[ExtOrderID] = e.OrderID
	}
	if e.WarehouseID != "" {
		ext[ExtWarehouseID] = e.WarehouseID
	}
	return ext
}
