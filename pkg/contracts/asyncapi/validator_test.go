package asyncapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = `
asyncapi: 3.0.0
info:
  title: test
  version: 1.0.0
components:
  schemas:
    MovementRecorded:
      x-event-type: wms.stock.movement-recorded
      type: object
      required: [shelfId, quantity]
      properties:
        shelfId:
          type: string
        quantity:
          type: integer
          minimum: 1
    Shelf:
      type: object
`

func TestValidateEventJSON(t *testing.T) {
	v, err := NewEventValidatorFromBytes([]byte(contract))
	require.NoError(t, err)
	assert.Equal(t, []string{"wms.stock.movement-recorded"}, v.EventTypes())

	event := func(data string) []byte {
		return []byte(`{"specversion":"1.0","id":"e-1","source":"/wms/fulfillment-service","type":"wms.stock.movement-recorded","data":` + data + `}`)
	}

	assert.NoError(t, v.ValidateEventJSON(event(`{"shelfId":"A-01","quantity":2}`)))
	assert.Error(t, v.ValidateEventJSON(event(`{"shelfId":"A-01","quantity":0}`)))
	assert.Error(t, v.ValidateEventJSON(event(`{"quantity":2}`)))
	assert.Error(t, v.ValidateEventJSON(event(`null`)))

	assert.Error(t, v.ValidateEventJSON([]byte(`{"specversion":"0.3","id":"e-1","source":"s","type":"wms.stock.movement-recorded","data":{}}`)))
	assert.Error(t, v.ValidateEventJSON([]byte(`{"specversion":"1.0","id":"e-1","source":"s","type":"wms.unknown","data":{}}`)))
	assert.Error(t, v.ValidateEventJSON([]byte(`not json`)))
}

func TestNewEventValidatorFromBytes_BadDocument(t *testing.T) {
	_, err := NewEventValidatorFromBytes([]byte("components: ["))
	assert.Error(t, err)
}
