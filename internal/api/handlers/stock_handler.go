package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/api"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// StockHandler serves the stock ledger and transfers
type StockHandler struct {
	ledger   LedgerService
	transfer TransferService
	logger   *logging.Logger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(ledger LedgerService, transfer TransferService, logger *logging.Logger) *StockHandler {
	return &StockHandler{ledger: ledger, transfer: transfer, logger: logger}
}

// RegisterRoutes registers stock routes on the router
func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/stock")
	{
		stock.POST("/movements", h.RecordMovement)
		stock.GET("/movements", h.ListMovements)
		stock.GET("/movements/export", h.ExportMovements)
		stock.GET("/levels/:shelfId/:productId", h.GetLevel)
		stock.GET("/reconcile/:shelfId/:productId", h.Reconcile)
		stock.POST("/transfers", h.Transfer)
	}
}

type recordMovementRequest struct {
	ShelfID         string `json:"shelfId" binding:"required"`
	ProductID       string `json:"productId" binding:"required"`
	Type            string `json:"type" binding:"required,oneof=PICKING PACKING_IN PACKING_OUT RECEIVING TRANSFER ADJUSTMENT RETURN CANCEL"`
	Direction       string `json:"direction" binding:"required,oneof=IN OUT"`
	Quantity        int64  `json:"quantity" binding:"required,min=1"`
	OrderID         string `json:"orderId"`
	RouteID         string `json:"routeId"`
	ReferenceNumber string `json:"referenceNumber" binding:"max=64"`
	Notes           string `json:"notes" binding:"max=500,safe_string"`
}

// RecordMovement appends one manual ledger row
func (h *StockHandler) RecordMovement(c *gin.Context) {
	var req recordMovementRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	movement, err := h.ledger.RecordMovement(c.Request.Context(), application.RecordMovementCommand{
		ShelfID:         req.ShelfID,
		ProductID:       req.ProductID,
		Type:            domain.MovementType(req.Type),
		Direction:       domain.Direction(req.Direction),
		Quantity:        req.Quantity,
		OrderID:         req.OrderID,
		RouteID:         req.RouteID,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		UserID:          middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

type historyParams struct {
	ShelfID   string `form:"shelfId"`
	ProductID string `form:"productId"`
	OrderID   string `form:"orderId"`
	RouteID   string `form:"routeId"`
	Type      string `form:"type" binding:"omitempty,oneof=PICKING PACKING_IN PACKING_OUT RECEIVING TRANSFER ADJUSTMENT RETURN CANCEL"`
}

func (h *StockHandler) historyQuery(c *gin.Context) (application.HistoryQuery, *errors.AppError) {
	var params historyParams
	if appErr := middleware.BindQuery(c, &params); appErr != nil {
		return application.HistoryQuery{}, appErr
	}
	from, to, err := api.ParseTimeRange(c)
	if err != nil {
		return application.HistoryQuery{}, errors.ErrValidation(err.Error())
	}
	page := api.ParsePagination(c)

	return application.HistoryQuery{
		ShelfID:   params.ShelfID,
		ProductID: params.ProductID,
		OrderID:   params.OrderID,
		RouteID:   params.RouteID,
		Type:      domain.MovementType(params.Type),
		From:      from,
		To:        to,
		Page:      page.Page,
		PageSize:  page.PageSize,
	}, nil
}

// ListMovements returns ledger history, newest first
func (h *StockHandler) ListMovements(c *gin.Context) {
	q, appErr := h.historyQuery(c)
	if appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	result, err := h.ledger.History(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, api.NewPageResponse(result.Movements, result.Page, result.PageSize, result.Total))
}

// ExportMovements streams the filtered history as a spreadsheet
func (h *StockHandler) ExportMovements(c *gin.Context) {
	q, appErr := h.historyQuery(c)
	if appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	var buf bytes.Buffer
	export, err := h.ledger.ExportHistory(c.Request.Context(), q, &buf)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName))
	c.Header("X-Export-Rows", strconv.Itoa(export.Rows))
	c.Header("X-Export-Truncated", strconv.FormatBool(export.Truncated))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *StockHandler) GetLevel(c *gin.Context) {
	level, err := h.ledger.CurrentLevel(c.Request.Context(), c.Param("shelfId"), c.Param("productId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

// Reconcile compares the ledger sum of a pair with its materialized level
func (h *StockHandler) Reconcile(c *gin.Context) {
	result, err := h.ledger.Reconcile(c.Request.Context(), c.Param("shelfId"), c.Param("productId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type transferRequest struct {
	FromShelfID     string `json:"fromShelfId" binding:"required"`
	ToShelfID       string `json:"toShelfId" binding:"required,nefield=FromShelfID"`
	ProductID       string `json:"productId" binding:"required"`
	Quantity        int64  `json:"quantity" binding:"required,min=1"`
	ReferenceNumber string `json:"referenceNumber" binding:"max=64"`
	Notes           string `json:"notes" binding:"max=500,safe_string"`
}

func (h *StockHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	result, err := h.transfer.Transfer(c.Request.Context(), application.TransferCommand{
		FromShelfID:     req.FromShelfID,
		ToShelfID:       req.ToShelfID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		UserID:          middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
