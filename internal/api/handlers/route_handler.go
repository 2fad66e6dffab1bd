package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/api"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// RouteHandler serves route aggregation and picking
type RouteHandler struct {
	routes  RouteService
	picking PickingService
	logger  *logging.Logger
}

// NewRouteHandler creates a new RouteHandler
func NewRouteHandler(routes RouteService, picking PickingService, logger *logging.Logger) *RouteHandler {
	return &RouteHandler{routes: routes, picking: picking, logger: logger}
}

// RegisterRoutes registers route and picking routes on the router
func (h *RouteHandler) RegisterRoutes(router *gin.RouterGroup) {
	routes := router.Group("/routes")
	{
		routes.POST("", h.CreateRoute)
		routes.GET("", h.ListRoutes)
		routes.GET("/candidates", h.CandidateOrders)
		routes.GET("/:id", h.GetRoute)
		routes.POST("/:id/print-label", h.PrintLabel)
		routes.POST("/:id/cancel", h.CancelRoute)

		picking := routes.Group("/:id/picking")
		picking.GET("", h.GetPicking)
		picking.POST("/scan", h.Scan)
		picking.POST("/bulk-scan", h.BulkScan)
		picking.POST("/complete", h.CompletePicking)
		picking.POST("/reset", h.ResetPicking)
	}
}

type createRouteRequest struct {
	OrderIDs    []string `json:"orderIds" binding:"required,min=1,max=500,dive,required"`
	Description string   `json:"description" binding:"max=500,safe_string"`
}

// CreateRoute consolidates orders into a new route
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req createRouteRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	route, err := h.routes.Create(c.Request.Context(), application.CreateRouteCommand{
		OrderIDs:    req.OrderIDs,
		Description: req.Description,
		UserID:      middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, route)
}

type listRoutesParams struct {
	Status string `form:"status" binding:"omitempty,oneof=COLLECTING READY PICKED COMPLETED CANCELLED"`
}

func (h *RouteHandler) ListRoutes(c *gin.Context) {
	var params listRoutesParams
	if appErr := middleware.BindQuery(c, &params); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}
	page := api.ParsePagination(c)

	routes, total, err := h.routes.List(c.Request.Context(), application.ListRoutesQuery{
		Status:   domain.RouteStatus(params.Status),
		Page:     page.Page,
		PageSize: page.PageSize,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, api.NewPageResponse(routes, page.Page, page.PageSize, total))
}

type candidateParams struct {
	WarehouseID string `form:"warehouseId"`
	Search      string `form:"search" binding:"max=100"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// CandidateOrders lists fulfillable orders that are not yet in an active route
func (h *RouteHandler) CandidateOrders(c *gin.Context) {
	var params candidateParams
	if appErr := middleware.BindQuery(c, &params); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	orders, err := h.routes.CandidateOrders(c.Request.Context(), application.CandidateOrdersQuery{
		WarehouseID: params.WarehouseID,
		Search:      params.Search,
		Limit:       params.Limit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if orders == nil {
		orders = []application.CandidateOrderDTO{}
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (h *RouteHandler) GetRoute(c *gin.Context) {
	route, err := h.routes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *RouteHandler) PrintLabel(c *gin.Context) {
	label, err := h.routes.PrintLabel(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, label)
}

func (h *RouteHandler) CancelRoute(c *gin.Context) {
	route, err := h.routes.Cancel(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *RouteHandler) GetPicking(c *gin.Context) {
	progress, err := h.picking.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

type pickScanRequest struct {
	Barcode  string `json:"barcode" binding:"required,barcode"`
	Quantity int64  `json:"quantity" binding:"omitempty,min=1"`
}

// Scan records one picking scan. Quantity defaults to one unit.
func (h *RouteHandler) Scan(c *gin.Context) {
	var req pickScanRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := h.picking.Scan(c.Request.Context(), application.PickScanCommand{
		RouteID:  c.Param("id"),
		Barcode:  req.Barcode,
		Quantity: req.Quantity,
		UserID:   middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkScanRequest struct {
	Barcodes []string `json:"barcodes" binding:"required,min=1,max=1000,dive,barcode"`
}

func (h *RouteHandler) BulkScan(c *gin.Context) {
	var req bulkScanRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	result, err := h.picking.BulkScan(c.Request.Context(), application.BulkScanCommand{
		RouteID:  c.Param("id"),
		Barcodes: req.Barcodes,
		UserID:   middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CompletePicking force-completes picking without writing ledger rows
func (h *RouteHandler) CompletePicking(c *gin.Context) {
	progress, err := h.picking.CompleteManually(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *RouteHandler) ResetPicking(c *gin.Context) {
	progress, err := h.picking.Reset(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
