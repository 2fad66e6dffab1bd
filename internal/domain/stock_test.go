package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionApply(t *testing.T) {
	after, err := DirectionIn.Apply("S", "P", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), after)

	after, err = DirectionOut.Apply("S", "P", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after)

	after, err = DirectionOut.Apply("S", "P", 10, 15)
	var ins *InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, int64(10), after)
	assert.Equal(t, "S", ins.ShelfID)
	assert.Equal(t, int64(15), ins.Requested)
	assert.Equal(t, int64(10), ins.Available)
}

func TestMovementRequestValidate(t *testing.T) {
	valid := MovementRequest{ShelfID: "S", ProductID: "P", Type: MovementReceiving, Direction: DirectionIn, Quantity: 1}

	tests := []struct {
		name    string
		mutate  func(r *MovementRequest)
		wantErr error
	}{
		{name: "valid", mutate: func(r *MovementRequest) {}},
		{name: "zero quantity", mutate: func(r *MovementRequest) { r.Quantity = 0 }, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", mutate: func(r *MovementRequest) { r.Quantity = -3 }, wantErr: ErrInvalidQuantity},
		{name: "missing shelf", mutate: func(r *MovementRequest) { r.ShelfID = "" }, wantErr: ErrShelfNotFound},
		{name: "missing product", mutate: func(r *MovementRequest) { r.ProductID = " " }, wantErr: ErrProductNotFound},
		{name: "bad type", mutate: func(r *MovementRequest) { r.Type = "LOST" }, wantErr: ErrInvalidMovementType},
		{name: "bad direction", mutate: func(r *MovementRequest) { r.Direction = "SIDEWAYS" }, wantErr: ErrInvalidDirection},
		{name: "target shelf on non-transfer", mutate: func(r *MovementRequest) { r.TargetShelfID = "T" }, wantErr: ErrTransferFieldsMisused},
		{
			name: "source shelf on transfer",
			mutate: func(r *MovementRequest) {
				r.Type = MovementTransfer
				r.SourceShelfID = "S0"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMovementTypeIsPaired(t *testing.T) {
	assert.True(t, MovementTransfer.IsPaired())
	for _, mt := range []MovementType{MovementPicking, MovementPackingIn, MovementPackingOut, MovementReceiving,
		MovementAdjustment, MovementReturn, MovementCancel} {
		assert.False(t, mt.IsPaired(), mt)
	}
}

func TestNewStockMovementEvent(t *testing.T) {
	m := NewStockMovement("m-1", 42, MovementRequest{
		ShelfID: "S", ProductID: "P", Type: MovementPicking, Direction: DirectionOut, Quantity: 2,
		OrderID: "O", RouteID: "R",
	}, testNow)
	m.QuantityBefore, m.QuantityAfter = 5, 3

	assert.Equal(t, int64(-2), m.Signed())
	ev := m.RecordedEvent()
	assert.Equal(t, "wms.stock.movement-recorded", ev.EventType())
	assert.Equal(t, int64(5), ev.QuantityBefore)
	assert.Equal(t, int64(3), ev.QuantityAfter)
	assert.Equal(t, "R", ev.RouteID)
	assert.Equal(t, testNow, ev.OccurredAt())
}

func TestNewReconciliation(t *testing.T) {
	assert.True(t, NewReconciliation("S", "P", 7, 7, 3).Consistent)
	assert.False(t, NewReconciliation("S", "P", 7, 6, 3).Consistent)
}
