package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

func sampleSession(status domain.SessionStatus) *application.PackingSessionDTO {
	return &application.PackingSessionDTO{
		ID:             "ps-1",
		RouteID:        "route-1",
		WarehouseID:    "wh-1",
		UserID:         "packer-1",
		StationID:      "st-4",
		Status:         string(status),
		CurrentOrderID: "o-1",
		TotalOrders:    2,
		StartedAt:      fixedTime,
		Items: []application.PackingItemDTO{
			{ID: "pi-1", OrderID: "o-1", OrderNumber: "SO-1", Barcode: "4006381333931", ProductID: "p-1", RequiredQuantity: 2, Sequence: 1},
			{ID: "pi-2", OrderID: "o-2", OrderNumber: "SO-2", Barcode: "4006381333931", ProductID: "p-1", RequiredQuantity: 3, Sequence: 2},
		},
	}
}

func TestStartPackingSession(t *testing.T) {
	s := newTestServer()
	var got application.StartPackingCommand
	s.packing.startFn = func(ctx context.Context, cmd application.StartPackingCommand) (*application.PackingSessionDTO, error) {
		got = cmd
		return sampleSession(domain.SessionStatusActive), nil
	}

	rec := s.do(t, call{
		method:  http.MethodPost,
		path:    "/api/v1/packing/sessions",
		body:    map[string]any{"routeId": "route-1", "stationId": "st-4"},
		headers: withUser("packer-1"),
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, application.StartPackingCommand{RouteID: "route-1", StationID: "st-4", UserID: "packer-1"}, got)
	assert.Equal(t, "o-1", decode[application.PackingSessionDTO](t, rec).CurrentOrderID)
}

func TestStartPackingSession_AlreadyActive(t *testing.T) {
	s := newTestServer()
	s.packing.startFn = func(ctx context.Context, cmd application.StartPackingCommand) (*application.PackingSessionDTO, error) {
		return nil, errors.ErrConflictWithCode(errors.CodeSessionAlreadyActive, "route already has an active packing session").
			WithDetail("sessionId", "ps-0")
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/packing/sessions", body: map[string]any{"routeId": "route-1"}})

	body := assertError(t, rec, http.StatusConflict, errors.CodeSessionAlreadyActive)
	assert.Equal(t, "ps-0", body.Details["sessionId"])
}

func TestStartPackingSession_MissingRoute(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/packing/sessions", body: map[string]any{"stationId": "st-4"}, invalid: true})

	body := assertError(t, rec, http.StatusBadRequest, errors.CodeValidationError)
	assert.Contains(t, body.Details, "routeId")
}

func TestGetPackingSession(t *testing.T) {
	s := newTestServer()
	s.packing.getFn = func(ctx context.Context, sessionID string) (*application.PackingSessionDTO, error) {
		if sessionID != "ps-1" {
			return nil, errors.ErrNotFoundWithID("packing session", sessionID)
		}
		return sampleSession(domain.SessionStatusActive), nil
	}

	rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/packing/sessions/ps-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[application.PackingSessionDTO](t, rec).Items, 2)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/v1/packing/sessions/ps-9"})
	assertError(t, rec, http.StatusNotFound, errors.CodeNotFound)
}

func TestCurrentPackingOrder(t *testing.T) {
	s := newTestServer()
	s.packing.currentFn = func(ctx context.Context, sessionID string) (*application.CurrentOrderDTO, error) {
		items := sampleSession(domain.SessionStatusActive).Items[:1]
		return &application.CurrentOrderDTO{
			SessionID:     sessionID,
			SessionStatus: string(domain.SessionStatusActive),
			OrderID:       "o-1",
			OrderNumber:   "SO-1",
			Items:         items,
			Outstanding:   map[string]int64{"4006381333931": 2},
		}, nil
	}

	rec := s.do(t, call{method: http.MethodGet, path: "/api/v1/packing/sessions/ps-1/current-order"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[application.CurrentOrderDTO](t, rec)
	assert.Equal(t, int64(2), body.Outstanding["4006381333931"])
	assert.False(t, body.Complete)
}

func TestPackScan(t *testing.T) {
	s := newTestServer()
	var got application.PackScanCommand
	s.packing.scanFn = func(ctx context.Context, cmd application.PackScanCommand) (*application.PackScanResultDTO, error) {
		got = cmd
		item := sampleSession(domain.SessionStatusActive).Items[0]
		item.ScannedQuantity = 1
		return &application.PackScanResultDTO{SessionID: cmd.SessionID, OrderID: item.OrderID, Item: item}, nil
	}

	rec := s.do(t, call{
		method:  http.MethodPost,
		path:    "/api/v1/packing/sessions/ps-1/scan",
		body:    map[string]any{"barcode": "4006381333931"},
		headers: withUser("packer-1"),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, application.PackScanCommand{SessionID: "ps-1", Barcode: "4006381333931", UserID: "packer-1"}, got)
	assert.Equal(t, int64(1), decode[application.PackScanResultDTO](t, rec).Item.ScannedQuantity)
}

func TestPackScan_NotInCurrentOrder(t *testing.T) {
	s := newTestServer()
	s.packing.scanFn = func(ctx context.Context, cmd application.PackScanCommand) (*application.PackScanResultDTO, error) {
		return nil, errors.ErrConflictWithCode(errors.CodeBarcodeNotInCurrentOrder, "barcode is not part of the current order").
			WithDetails(map[string]string{"barcode": cmd.Barcode, "orderId": "o-1"})
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/packing/sessions/ps-1/scan", body: map[string]any{"barcode": "9999"}})

	body := assertError(t, rec, http.StatusConflict, errors.CodeBarcodeNotInCurrentOrder)
	assert.Equal(t, "o-1", body.Details["orderId"])
}

func completedResult(cmd application.CompleteOrderCommand) *application.CompleteOrderResultDTO {
	out := application.StockMovementDTO{
		ID: "mv-20", ShelfID: "pack-1", ProductID: "p-1",
		Type: string(domain.MovementPackingOut), Direction: string(domain.DirectionOut),
		Quantity: 2, QuantityBefore: 5, QuantityAfter: 3, OrderID: cmd.OrderID, CreatedAt: fixedTime,
	}
	return &application.CompleteOrderResultDTO{
		SessionID:     cmd.SessionID,
		OrderID:       cmd.OrderID,
		SessionStatus: string(domain.SessionStatusActive),
		NextOrderID:   "o-2",
		Movements:     []application.StockMovementDTO{out},
	}
}

func TestCompletePackingOrder_WithoutBody(t *testing.T) {
	s := newTestServer()
	var got application.CompleteOrderCommand
	s.packing.completeFn = func(ctx context.Context, cmd application.CompleteOrderCommand) (*application.CompleteOrderResultDTO, error) {
		got = cmd
		return completedResult(cmd), nil
	}

	rec := s.do(t, call{
		method:  http.MethodPost,
		path:    "/api/v1/packing/sessions/ps-1/orders/o-1/complete",
		headers: withUser("packer-1"),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ps-1", got.SessionID)
	assert.Equal(t, "o-1", got.OrderID)
	assert.Equal(t, "packer-1", got.UserID)
	assert.Empty(t, got.Consumables)
	assert.Equal(t, "o-2", decode[application.CompleteOrderResultDTO](t, rec).NextOrderID)
}

func TestCompletePackingOrder_WithConsumables(t *testing.T) {
	s := newTestServer()
	var got application.CompleteOrderCommand
	s.packing.completeFn = func(ctx context.Context, cmd application.CompleteOrderCommand) (*application.CompleteOrderResultDTO, error) {
		got = cmd
		return completedResult(cmd), nil
	}

	rec := s.do(t, call{
		method: http.MethodPost,
		path:   "/api/v1/packing/sessions/ps-1/orders/o-1/complete",
		body: map[string]any{"consumables": []map[string]any{
			{"consumableId": "box-s", "quantity": 1},
			{"consumableId": "tape", "quantity": 2},
		}},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []domain.ConsumableUsage{
		{ConsumableID: "box-s", Quantity: 1},
		{ConsumableID: "tape", Quantity: 2},
	}, got.Consumables)
}

func TestCompletePackingOrder_InvalidConsumable(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, call{
		method:  http.MethodPost,
		path:    "/api/v1/packing/sessions/ps-1/orders/o-1/complete",
		body:    map[string]any{"consumables": []map[string]any{{"consumableId": "box-s", "quantity": 0}}},
		invalid: true,
	})

	assertError(t, rec, http.StatusBadRequest, errors.CodeValidationError)
}

func TestCompletePackingOrder_Incomplete(t *testing.T) {
	s := newTestServer()
	s.packing.completeFn = func(ctx context.Context, cmd application.CompleteOrderCommand) (*application.CompleteOrderResultDTO, error) {
		return nil, errors.ErrConflictWithCode(errors.CodeOrderIncomplete, "order still has unscanned items")
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/packing/sessions/ps-1/orders/o-1/complete"})

	assertError(t, rec, http.StatusConflict, errors.CodeOrderIncomplete)
}

func TestCancelPackingSession(t *testing.T) {
	s := newTestServer()
	var gotUser string
	s.packing.cancelFn = func(ctx context.Context, sessionID, userID string) (*application.PackingSessionDTO, error) {
		gotUser = userID
		session := sampleSession(domain.SessionStatusCancelled)
		session.CancelledAt = &fixedTime
		return session, nil
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/api/v1/packing/sessions/ps-1/cancel", headers: withUser("sup-1")})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sup-1", gotUser)
	assert.Equal(t, string(domain.SessionStatusCancelled), decode[application.PackingSessionDTO](t, rec).Status)
}
