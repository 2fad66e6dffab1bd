package application

import "github.com/wms-platform/fulfillment-service/internal/domain"

// ToStockMovementDTO converts a ledger row to StockMovementDTO
func ToStockMovementDTO(m *domain.StockMovement) StockMovementDTO {
	return StockMovementDTO{
		ID:              m.ID,
		ShelfID:         m.ShelfID,
		ProductID:       m.ProductID,
		Type:            string(m.Type),
		Direction:       string(m.Direction),
		Quantity:        m.Quantity,
		QuantityBefore:  m.QuantityBefore,
		QuantityAfter:   m.QuantityAfter,
		OrderID:         m.OrderID,
		RouteID:         m.RouteID,
		SourceShelfID:   m.SourceShelfID,
		TargetShelfID:   m.TargetShelfID,
		ReferenceNumber: m.ReferenceNumber,
		Notes:           m.Notes,
		UserID:          m.UserID,
		CreatedAt:       m.CreatedAt,
	}
}

// ToStockMovementDTOs converts a slice of ledger rows
func ToStockMovementDTOs(movements []*domain.StockMovement) []StockMovementDTO {
	out := make([]StockMovementDTO, 0, len(movements))
	for _, m := range movements {
		out = append(out, ToStockMovementDTO(m))
	}
	return out
}

// ToReconciliationDTO converts a reconciliation result
func ToReconciliationDTO(r *domain.Reconciliation) *ReconciliationDTO {
	if r == nil {
		return nil
	}
	return &ReconciliationDTO{
		ShelfID:       r.ShelfID,
		ProductID:     r.ProductID,
		LedgerSum:     r.LedgerSum,
		Materialized:  r.Materialized,
		MovementCount: r.MovementCount,
		Consistent:    r.Consistent,
	}
}

// ToShelfDTO converts a domain Shelf to ShelfDTO
func ToShelfDTO(s *domain.Shelf) *ShelfDTO {
	if s == nil {
		return nil
	}
	return &ShelfDTO{
		ID:           s.ID,
		Name:         s.Name,
		Barcode:      s.Barcode,
		Type:         string(s.Type),
		WarehouseID:  s.WarehouseID,
		ParentID:     s.ParentID,
		Path:         s.Path,
		GlobalSlot:   s.GlobalSlot,
		IsSellable:   s.IsSellable,
		IsReservable: s.IsReservable,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// ToShelfNodeDTOs converts a nested shelf forest
func ToShelfNodeDTOs(nodes []*domain.ShelfNode) []ShelfNodeDTO {
	out := make([]ShelfNodeDTO, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ShelfNodeDTO{
			ShelfDTO: *ToShelfDTO(n.Shelf),
			Children: ToShelfNodeDTOs(n.Children),
		})
	}
	return out
}

// ToRouteSummaryDTO converts a route without its orders and items
func ToRouteSummaryDTO(r *domain.Route) RouteSummaryDTO {
	return RouteSummaryDTO{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		WarehouseID:      r.WarehouseID,
		Status:           string(r.Status),
		TotalOrderCount:  r.TotalOrderCount,
		TotalItemCount:   r.TotalItemCount,
		PickedItemCount:  r.PickedItemCount,
		PackedOrderCount: r.PackedOrderCount,
		LabelPrintedAt:   r.LabelPrintedAt,
		LabelPrintCount:  r.LabelPrintCount,
		CreatedBy:        r.CreatedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		PickedAt:         r.PickedAt,
		CompletedAt:      r.CompletedAt,
		CancelledAt:      r.CancelledAt,
	}
}

// ToRouteDTO converts a domain Route to RouteDTO
func ToRouteDTO(r *domain.Route) *RouteDTO {
	if r == nil {
		return nil
	}

	orders := make([]RouteOrderDTO, 0, len(r.Orders))
	for _, ro := range r.Orders {
		lines := make([]RouteOrderLineDTO, 0, len(ro.Lines))
		for _, l := range ro.Lines {
			lines = append(lines, RouteOrderLineDTO{
				Barcode:     l.Barcode,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
			})
		}
		orders = append(orders, RouteOrderDTO{
			OrderID:        ro.OrderID,
			OrderNumber:    ro.OrderNumber,
			Sequence:       ro.Sequence,
			PickStatus:     string(ro.PickStatus),
			PickedManually: ro.PickedManually,
			PickedAt:       ro.PickedAt,
			Packed:         ro.Packed,
			PackedAt:       ro.PackedAt,
			Lines:          lines,
		})
	}

	return &RouteDTO{
		RouteSummaryDTO: ToRouteSummaryDTO(r),
		Orders:          orders,
		PickingItems:    ToPickingItemDTOs(r.PickingItems),
	}
}

// ToPickingItemDTOs converts a route's pick list
func ToPickingItemDTOs(items []domain.PickingItem) []PickingItemDTO {
	out := make([]PickingItemDTO, 0, len(items))
	for _, item := range items {
		allocations := make([]AllocationDTO, 0, len(item.Allocations))
		for _, a := range item.Allocations {
			allocations = append(allocations, AllocationDTO{
				OrderID:     a.OrderID,
				OrderNumber: a.OrderNumber,
				Quantity:    a.Quantity,
				Remaining:   a.Remaining,
			})
		}
		out = append(out, PickingItemDTO{
			Barcode:        item.Barcode,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			ShelfLocation:  item.ShelfLocation,
			TotalQuantity:  item.TotalQuantity,
			PickedQuantity: item.PickedQuantity,
			IsComplete:     item.IsComplete,
			Orders:         allocations,
		})
	}
	return out
}

// ToPickingProgressDTO summarizes picking progress of a route
func ToPickingProgressDTO(r *domain.Route) *PickingProgressDTO {
	var picked int64
	for _, ro := range r.Orders {
		if ro.PickStatus == domain.PickStatusPicked {
			picked++
		}
	}
	return &PickingProgressDTO{
		RouteID:          r.ID,
		Status:           string(r.Status),
		TotalItemCount:   r.TotalItemCount,
		PickedItemCount:  r.PickedItemCount,
		TotalOrderCount:  r.TotalOrderCount,
		PickedOrderCount: picked,
		Items:            ToPickingItemDTOs(r.PickingItems),
	}
}

// ToPickScanResultDTO converts the outcome of a picking scan
func ToPickScanResultDTO(r *domain.Route, res *domain.PickScanResult) *PickScanResultDTO {
	consumptions := make([]ConsumptionDTO, 0, len(res.Consumptions))
	for _, c := range res.Consumptions {
		consumptions = append(consumptions, ConsumptionDTO{OrderID: c.OrderID, Quantity: c.Quantity})
	}
	completed := res.CompletedOrders
	if completed == nil {
		completed = []string{}
	}
	return &PickScanResultDTO{
		RouteID:         r.ID,
		RouteStatus:     string(r.Status),
		Barcode:         res.Barcode,
		Quantity:        res.Quantity,
		PickedQuantity:  res.PickedQuantity,
		TotalQuantity:   res.TotalQuantity,
		ItemComplete:    res.ItemComplete,
		Consumptions:    consumptions,
		CompletedOrders: completed,
		RoutePicked:     res.RoutePicked,
	}
}

// ToCandidateOrderDTO converts an Order Store order to CandidateOrderDTO
func ToCandidateOrderDTO(o *domain.Order) CandidateOrderDTO {
	var items int64
	for _, l := range o.Lines {
		items += l.Quantity
	}
	return CandidateOrderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		WarehouseID: o.WarehouseID,
		Status:      string(o.Status),
		LineCount:   len(o.Lines),
		ItemCount:   items,
		CreatedAt:   o.CreatedAt,
	}
}

// ToPackingItemDTO converts one packing line
func ToPackingItemDTO(item domain.PackingOrderItem) PackingItemDTO {
	return PackingItemDTO{
		ID:               item.ID,
		OrderID:          item.OrderID,
		OrderNumber:      item.OrderNumber,
		Barcode:          item.Barcode,
		ProductID:        item.ProductID,
		ProductName:      item.ProductName,
		RequiredQuantity: item.RequiredQuantity,
		ScannedQuantity:  item.ScannedQuantity,
		IsComplete:       item.IsComplete,
		ScannedAt:        item.ScannedAt,
		Sequence:         item.Sequence,
	}
}

func toPackingItemDTOs(items []domain.PackingOrderItem) []PackingItemDTO {
	out := make([]PackingItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, ToPackingItemDTO(item))
	}
	return out
}

// ToPackingSessionDTO converts a domain PackingSession to PackingSessionDTO
func ToPackingSessionDTO(s *domain.PackingSession) *PackingSessionDTO {
	if s == nil {
		return nil
	}
	return &PackingSessionDTO{
		ID:             s.ID,
		RouteID:        s.RouteID,
		WarehouseID:    s.WarehouseID,
		UserID:         s.UserID,
		StationID:      s.StationID,
		Status:         string(s.Status),
		CurrentOrderID: s.CurrentOrderID,
		TotalOrders:    s.TotalOrders,
		PackedOrders:   s.PackedOrders,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
		CancelledAt:    s.CancelledAt,
		Items:          toPackingItemDTOs(s.Items),
	}
}

// ToCurrentOrderDTO describes the order a session is packing. A finished
// session yields an empty order.
func ToCurrentOrderDTO(s *domain.PackingSession) *CurrentOrderDTO {
	dto := &CurrentOrderDTO{
		SessionID:     s.ID,
		SessionStatus: string(s.Status),
		OrderID:       s.CurrentOrderID,
		Items:         []PackingItemDTO{},
		Outstanding:   map[string]int64{},
	}
	if s.CurrentOrderID == "" {
		return dto
	}
	items := s.OrderItems(s.CurrentOrderID)
	if len(items) > 0 {
		dto.OrderNumber = items[0].OrderNumber
	}
	dto.Items = toPackingItemDTOs(items)
	dto.Outstanding = s.Outstanding(s.CurrentOrderID)
	dto.Complete = len(dto.Outstanding) == 0
	return dto
}
