package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/pkg/contracts/openapi"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

var contract *openapi.Validator

var fixedTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	middleware.InitValidator()

	v, err := openapi.NewValidator("../../../api/openapi.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	contract = v

	os.Exit(m.Run())
}

type testServer struct {
	shelves  *mockShelfService
	ledger   *mockLedgerService
	transfer *mockTransferService
	routes   *mockRouteService
	picking  *mockPickingService
	packing  *mockPackingService
	router   *gin.Engine
}

func newTestServer() *testServer {
	s := &testServer{
		shelves:  &mockShelfService{},
		ledger:   &mockLedgerService{},
		transfer: &mockTransferService{},
		routes:   &mockRouteService{},
		picking:  &mockPickingService{},
		packing:  &mockPackingService{},
	}

	logger := logging.NewNop()
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.UserID())

	v1 := router.Group("/api/v1")
	NewShelfHandler(s.shelves, s.ledger, logger).RegisterRoutes(v1)
	NewStockHandler(s.ledger, s.transfer, logger).RegisterRoutes(v1)
	NewRouteHandler(s.routes, s.picking, logger).RegisterRoutes(v1)
	NewPackingHandler(s.packing, logger).RegisterRoutes(v1)

	s.router = router
	return s
}

type call struct {
	method  string
	path    string
	body    any
	headers map[string]string
	// invalid requests are expected to break the contract, so only the
	// response is checked
	invalid bool
	// binary responses have no JSON schema to check against
	skipResponseContract bool
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var raw []byte
	switch b := c.body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}

	build := func() *http.Request {
		var body io.Reader
		if raw != nil {
			body = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(c.method, c.path, body)
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		return req
	}

	if !c.invalid {
		require.NoError(t, contract.ValidateRequest(build()), "request breaks the API contract")
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, build())

	if !c.skipResponseContract {
		require.NoError(t, contract.ValidateResponse(build(), rec.Result()), "response breaks the API contract: %s", rec.Body.String())
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) middleware.APIErrorResponse {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[middleware.APIErrorResponse](t, rec)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Message)
	assert.NotEmpty(t, body.RequestID)
	return body
}

func withUser(userID string) map[string]string {
	return map[string]string{middleware.HeaderUserID: userID}
}

func TestRoutesMatchContract(t *testing.T) {
	routes := newTestServer().router.Routes()

	registered := make(map[string]bool, len(routes))
	for _, r := range routes {
		assert.True(t, contract.Documents(r.Method, r.Path), "%s %s is served but not documented", r.Method, r.Path)
		registered[r.Method+" "+r.Path] = true
	}
	assert.Len(t, contract.Operations(), len(registered), "documented operations without a handler")
}
