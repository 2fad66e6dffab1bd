package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testOrder(id string, lines ...OrderLine) *Order {
	return &Order{
		ID:          id,
		OrderNumber: "ORD-" + id,
		WarehouseID: "WH-1",
		Status:      OrderStatusNew,
		Lines:       lines,
	}
}

func line(barcode string, qty int64) OrderLine {
	return OrderLine{Barcode: barcode, ProductID: "P-" + barcode, ProductName: "Product " + barcode, Quantity: qty}
}

// newTwoOrderRoute builds order A (X x3) and order B (X x2, Y x1)
func newTwoOrderRoute(t *testing.T) *Route {
	t.Helper()
	r, err := NewRoute("route-1", RouteName(1), "", []*Order{
		testOrder("A", line("X", 3)),
		testOrder("B", line("X", 2), line("Y", 1)),
	}, map[string]string{"P-X": "WH-1/A/01"}, "user-1", testNow)
	require.NoError(t, err)
	return r
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "R000001", RouteName(1))
	assert.Equal(t, "R012345", RouteName(12345))
	assert.Equal(t, "R1234567", RouteName(1234567))
}

func TestNewRoute(t *testing.T) {
	r := newTwoOrderRoute(t)

	assert.Equal(t, RouteStatusReady, r.Status)
	assert.True(t, r.Active)
	assert.Equal(t, int64(2), r.TotalOrderCount)
	assert.Equal(t, int64(6), r.TotalItemCount)
	assert.Equal(t, int64(0), r.PickedItemCount)
	assert.Equal(t, []string{"A", "B"}, r.OrderIDs)
	require.Len(t, r.PickingItems, 2)

	x := r.Item("X")
	require.NotNil(t, x)
	assert.Equal(t, int64(5), x.TotalQuantity)
	assert.Equal(t, "WH-1/A/01", x.ShelfLocation)
	assert.Equal(t, []Allocation{
		{OrderID: "A", OrderNumber: "ORD-A", Quantity: 3, Remaining: 3},
		{OrderID: "B", OrderNumber: "ORD-B", Quantity: 2, Remaining: 2},
	}, x.Allocations)

	require.Len(t, r.GetDomainEvents(), 1)
	assert.Equal(t, "wms.route.created", r.GetDomainEvents()[0].EventType())
}

func TestNewRouteGroupsLinesPerBarcode(t *testing.T) {
	r, err := NewRoute("route-1", RouteName(1), "", []*Order{
		testOrder("A", line("X", 1), line("X", 2)),
	}, nil, "", testNow)
	require.NoError(t, err)

	require.Len(t, r.Orders[0].Lines, 1)
	assert.Equal(t, int64(3), r.Orders[0].Lines[0].Quantity)
	assert.Equal(t, int64(3), r.Item("X").TotalQuantity)
}

func TestNewRouteValidation(t *testing.T) {
	cancelled := testOrder("C", line("X", 1))
	cancelled.Status = OrderStatusCancelled
	otherWarehouse := testOrder("W", line("X", 1))
	otherWarehouse.WarehouseID = "WH-2"
	mismatched := testOrder("M", OrderLine{Barcode: "X", ProductID: "P-other", Quantity: 1})

	tests := []struct {
		name    string
		orders  []*Order
		wantErr error
	}{
		{name: "no orders", orders: nil, wantErr: ErrEmptyRoute},
		{name: "duplicate order", orders: []*Order{testOrder("A", line("X", 1)), testOrder("A", line("X", 1))}, wantErr: ErrDuplicateOrder},
		{name: "mixed warehouses", orders: []*Order{testOrder("A", line("X", 1)), otherWarehouse}, wantErr: ErrMixedWarehouses},
		{name: "zero quantity line", orders: []*Order{testOrder("A", line("X", 0))}, wantErr: ErrInvalidQuantity},
		{name: "barcode maps to two products", orders: []*Order{testOrder("A", line("X", 1)), mismatched}, wantErr: ErrBarcodeProductMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoute("r", RouteName(1), "", tt.orders, nil, "", testNow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("order not fulfillable", func(t *testing.T) {
		_, err := NewRoute("r", RouteName(1), "", []*Order{cancelled}, nil, "", testNow)
		var nf *OrderNotFulfillableError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "C", nf.OrderID)
		assert.Equal(t, OrderStatusCancelled, nf.Status)
	})
}

func TestRouteScanCompletesOrdersFIFO(t *testing.T) {
	r, err := NewRoute("route-1", RouteName(1), "", []*Order{
		testOrder("A", line("X", 3)),
		testOrder("B", line("X", 2)),
	}, nil, "", testNow)
	require.NoError(t, err)

	var completedAt []int
	for i := 1; i <= 5; i++ {
		res, err := r.Scan("X", 1, testNow)
		require.NoError(t, err)
		if len(res.CompletedOrders) > 0 {
			completedAt = append(completedAt, i)
		}
		switch i {
		case 3:
			assert.Equal(t, []string{"A"}, res.CompletedOrders)
		case 5:
			assert.Equal(t, []string{"B"}, res.CompletedOrders)
			assert.True(t, res.RoutePicked)
			assert.True(t, res.ItemComplete)
		}
	}

	assert.Equal(t, []int{3, 5}, completedAt)
	assert.Equal(t, RouteStatusPicked, r.Status)
	assert.Equal(t, r.TotalItemCount, r.PickedItemCount)
	assert.Equal(t, PickStatusPicked, r.Order("A").PickStatus)
	assert.Equal(t, PickStatusPicked, r.Order("B").PickStatus)
	assert.NotNil(t, r.PickedAt)
}

func TestRouteScanRejections(t *testing.T) {
	t.Run("unknown barcode", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		_, err := r.Scan("Z", 1, testNow)
		var ub *UnknownBarcodeError
		require.ErrorAs(t, err, &ub)
		assert.False(t, ub.Complete)
	})

	t.Run("barcode already complete", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		_, err := r.Scan("Y", 1, testNow)
		require.NoError(t, err)
		_, err = r.Scan("Y", 1, testNow)
		var ub *UnknownBarcodeError
		require.ErrorAs(t, err, &ub)
		assert.True(t, ub.Complete)
	})

	t.Run("over-scan leaves progress unchanged", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		_, err := r.Scan("X", 4, testNow)
		require.NoError(t, err)

		_, err = r.Scan("X", 2, testNow)
		var os *OverScanError
		require.ErrorAs(t, err, &os)
		assert.Equal(t, int64(5), os.Required)
		assert.Equal(t, int64(4), os.Scanned)
		assert.Equal(t, int64(2), os.Attempted)
		assert.Equal(t, int64(4), r.Item("X").PickedQuantity)
		assert.Equal(t, int64(4), r.PickedItemCount)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		_, err := r.Scan("X", 0, testNow)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("cancelled route", func(t *testing.T) {
		r := newTwoOrderRoute(t)
		_, _, err := r.Cancel(testNow)
		require.NoError(t, err)
		_, err = r.Scan("X", 1, testNow)
		var it *InvalidTransitionError
		assert.ErrorAs(t, err, &it)
	})
}

func TestRoutePickingConservation(t *testing.T) {
	r := newTwoOrderRoute(t)
	scans := []struct {
		barcode string
		qty     int64
	}{{"X", 2}, {"Y", 1}, {"X", 9}, {"X", 3}, {"Y", 1}}

	for _, s := range scans {
		_, _ = r.Scan(s.barcode, s.qty, testNow)

		var picked, total int64
		for _, item := range r.PickingItems {
			assert.LessOrEqual(t, item.PickedQuantity, item.TotalQuantity)
			assert.Equal(t, item.PickedQuantity == item.TotalQuantity, item.IsComplete)
			picked += item.PickedQuantity
			total += item.TotalQuantity
		}
		assert.Equal(t, picked, r.PickedItemCount)
		assert.Equal(t, total, r.TotalItemCount)
	}
	assert.Equal(t, RouteStatusPicked, r.Status)
}

func TestRouteCompleteManually(t *testing.T) {
	r := newTwoOrderRoute(t)
	_, err := r.Scan("X", 3, testNow)
	require.NoError(t, err)

	forced, err := r.CompleteManually("admin", testNow)
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, forced)
	assert.Equal(t, RouteStatusPicked, r.Status)
	assert.Equal(t, r.TotalItemCount, r.PickedItemCount)
	assert.False(t, r.Order("A").PickedManually)
	assert.True(t, r.Order("B").PickedManually)

	again, err := r.CompleteManually("admin", testNow)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRouteReset(t *testing.T) {
	r := newTwoOrderRoute(t)
	_, err := r.Scan("X", 3, testNow)
	require.NoError(t, err)
	require.NoError(t, r.RecordPicks("A", []PickRecord{{ShelfID: "S1", ProductID: "P-X", Quantity: 3, StagingShelfID: "PK"}}))

	compensate, err := r.Reset("admin", testNow)
	require.NoError(t, err)

	require.Len(t, compensate, 1)
	assert.Equal(t, "A", compensate[0].OrderID)
	assert.Equal(t, RouteStatusReady, r.Status)
	assert.Equal(t, int64(0), r.PickedItemCount)
	for _, item := range r.PickingItems {
		assert.Equal(t, int64(0), item.PickedQuantity)
		assert.False(t, item.IsComplete)
		for _, a := range item.Allocations {
			assert.Equal(t, a.Quantity, a.Remaining)
		}
	}
	for _, ro := range r.Orders {
		assert.Equal(t, PickStatusPending, ro.PickStatus)
		assert.Empty(t, ro.Picks)
	}
}

func TestRouteResetRejectedAfterPacking(t *testing.T) {
	r := newTwoOrderRoute(t)
	_, err := r.CompleteManually("admin", testNow)
	require.NoError(t, err)
	_, err = r.MarkOrderPacked("A", testNow)
	require.NoError(t, err)

	_, err = r.Reset("admin", testNow)
	var it *InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, RouteStatusPicked, r.Status)
}

func TestRouteCancel(t *testing.T) {
	r := newTwoOrderRoute(t)
	_, err := r.Scan("X", 3, testNow)
	require.NoError(t, err)
	require.NoError(t, r.RecordPicks("A", []PickRecord{{ShelfID: "S1", ProductID: "P-X", Quantity: 3, StagingShelfID: "PK"}}))

	release, changed, err := r.Cancel(testNow)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, release, 1)
	assert.Equal(t, "A", release[0].OrderID)
	assert.Equal(t, RouteStatusCancelled, r.Status)
	assert.False(t, r.Active)

	release, changed, err = r.Cancel(testNow)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, release)
}

func TestRouteCancelCompletedRejected(t *testing.T) {
	r, err := NewRoute("route-1", RouteName(1), "", []*Order{testOrder("A", line("X", 1))}, nil, "", testNow)
	require.NoError(t, err)
	_, err = r.Scan("X", 1, testNow)
	require.NoError(t, err)
	completed, err := r.MarkOrderPacked("A", testNow)
	require.NoError(t, err)
	require.True(t, completed)

	_, _, err = r.Cancel(testNow)
	var it *InvalidTransitionError
	assert.True(t, errors.As(err, &it))
	assert.Equal(t, RouteStatusCompleted, r.Status)
}

func TestRoutePrintLabel(t *testing.T) {
	r := newTwoOrderRoute(t)

	reprint, err := r.PrintLabel("user-1", testNow)
	require.NoError(t, err)
	assert.False(t, reprint)
	first := *r.LabelPrintedAt

	reprint, err = r.PrintLabel("user-1", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, reprint)
	assert.Equal(t, first, *r.LabelPrintedAt)
	assert.Equal(t, 2, r.LabelPrintCount)
}

func TestRouteMarkOrderPacked(t *testing.T) {
	r := newTwoOrderRoute(t)

	_, err := r.MarkOrderPacked("A", testNow)
	var it *InvalidTransitionError
	require.ErrorAs(t, err, &it, "route must be picked first")

	_, err = r.CompleteManually("admin", testNow)
	require.NoError(t, err)

	completed, err := r.MarkOrderPacked("A", testNow)
	require.NoError(t, err)
	assert.False(t, completed)

	completed, err = r.MarkOrderPacked("A", testNow)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, int64(1), r.PackedOrderCount)

	completed, err = r.MarkOrderPacked("B", testNow)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, RouteStatusCompleted, r.Status)
	assert.False(t, r.Active)

	_, err = r.MarkOrderPacked("nope", testNow)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRouteStagedStock(t *testing.T) {
	r := newTwoOrderRoute(t)
	require.NoError(t, r.RecordPicks("B", []PickRecord{
		{ShelfID: "S1", ProductID: "P-X", Quantity: 1, StagingShelfID: "PK"},
		{ShelfID: "S2", ProductID: "P-X", Quantity: 1, StagingShelfID: "PK"},
		{ShelfID: "S1", ProductID: "P-Y", Quantity: 1, StagingShelfID: "PK"},
	}))

	staged := r.StagedStock("B")
	assert.Equal(t, []PickRecord{
		{ShelfID: "PK", ProductID: "P-X", Quantity: 2, StagingShelfID: "PK"},
		{ShelfID: "PK", ProductID: "P-Y", Quantity: 1, StagingShelfID: "PK"},
	}, staged)
}
