package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// PackingHandler serves packing sessions
type PackingHandler struct {
	packing PackingService
	logger  *logging.Logger
}

// NewPackingHandler creates a new PackingHandler
func NewPackingHandler(packing PackingService, logger *logging.Logger) *PackingHandler {
	return &PackingHandler{packing: packing, logger: logger}
}

// RegisterRoutes registers packing routes on the router
func (h *PackingHandler) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/packing/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/current-order", h.CurrentOrder)
		sessions.POST("/:id/scan", h.Scan)
		sessions.POST("/:id/orders/:orderId/complete", h.CompleteOrder)
		sessions.POST("/:id/cancel", h.CancelSession)
	}
}

type startSessionRequest struct {
	RouteID   string `json:"routeId" binding:"required"`
	StationID string `json:"stationId" binding:"max=64"`
}

func (h *PackingHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	session, err := h.packing.Start(c.Request.Context(), application.StartPackingCommand{
		RouteID:   req.RouteID,
		StationID: req.StationID,
		UserID:    middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *PackingHandler) GetSession(c *gin.Context) {
	session, err := h.packing.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// CurrentOrder returns the order being packed and its outstanding lines
func (h *PackingHandler) CurrentOrder(c *gin.Context) {
	order, err := h.packing.CurrentOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type packScanRequest struct {
	Barcode string `json:"barcode" binding:"required,barcode"`
}

func (h *PackingHandler) Scan(c *gin.Context) {
	var req packScanRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	result, err := h.packing.Scan(c.Request.Context(), application.PackScanCommand{
		SessionID: c.Param("id"),
		Barcode:   req.Barcode,
		UserID:    middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type consumableRequest struct {
	ConsumableID string `json:"consumableId" binding:"required"`
	Quantity     int64  `json:"quantity" binding:"required,min=1"`
}

type completeOrderRequest struct {
	Consumables []consumableRequest `json:"consumables" binding:"max=50,dive"`
}

// CompleteOrder finishes packing one order. The body is optional.
func (h *PackingHandler) CompleteOrder(c *gin.Context) {
	var req completeOrderRequest
	if c.Request.ContentLength != 0 {
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
			return
		}
	}

	usage := make([]domain.ConsumableUsage, 0, len(req.Consumables))
	for _, item := range req.Consumables {
		usage = append(usage, domain.ConsumableUsage{ConsumableID: item.ConsumableID, Quantity: item.Quantity})
	}

	result, err := h.packing.CompleteOrder(c.Request.Context(), application.CompleteOrderCommand{
		SessionID:   c.Param("id"),
		OrderID:     c.Param("orderId"),
		Consumables: usage,
		UserID:      middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PackingHandler) CancelSession(c *gin.Context) {
	session, err := h.packing.Cancel(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
