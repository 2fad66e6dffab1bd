package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
)

// ShelfHandler serves the shelf directory
type ShelfHandler struct {
	shelves ShelfService
	ledger  LedgerService
	logger  *logging.Logger
}

// NewShelfHandler creates a new ShelfHandler
func NewShelfHandler(shelves ShelfService, ledger LedgerService, logger *logging.Logger) *ShelfHandler {
	return &ShelfHandler{shelves: shelves, ledger: ledger, logger: logger}
}

// RegisterRoutes registers shelf routes on the router
func (h *ShelfHandler) RegisterRoutes(router *gin.RouterGroup) {
	shelves := router.Group("/shelves")
	{
		shelves.POST("", h.CreateShelf)
		shelves.GET("/:id", h.GetShelf)
		shelves.PATCH("/:id", h.UpdateShelf)
		shelves.POST("/:id/move", h.MoveShelf)
		shelves.DELETE("/:id", h.DeleteShelf)
		shelves.GET("/:id/stock", h.GetShelfStock)
		shelves.GET("/:id/total-stock", h.GetTotalStock)
	}
	router.GET("/warehouses/:warehouseId/shelves/tree", h.GetTree)
}

type createShelfRequest struct {
	ParentID     *string `json:"parentId"`
	Name         string  `json:"name" binding:"required,max=100,safe_string"`
	Barcode      string  `json:"barcode" binding:"omitempty,barcode"`
	Type         string  `json:"type" binding:"required,oneof=NORMAL DAMAGED PACKING PICKING RECEIVING RETURN RETURN_DAMAGED"`
	WarehouseID  string  `json:"warehouseId" binding:"required"`
	GlobalSlot   *int64  `json:"globalSlot" binding:"omitempty,min=1"`
	IsSellable   *bool   `json:"isSellable"`
	IsReservable *bool   `json:"isReservable"`
}

// CreateShelf handles shelf creation
func (h *ShelfHandler) CreateShelf(c *gin.Context) {
	var req createShelfRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	shelf, err := h.shelves.Create(c.Request.Context(), application.CreateShelfCommand{
		ParentID:     req.ParentID,
		Name:         req.Name,
		Barcode:      req.Barcode,
		Type:         domain.ShelfType(req.Type),
		WarehouseID:  req.WarehouseID,
		GlobalSlot:   req.GlobalSlot,
		IsSellable:   req.IsSellable,
		IsReservable: req.IsReservable,
		UserID:       middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, shelf)
}

func (h *ShelfHandler) GetShelf(c *gin.Context) {
	shelf, err := h.shelves.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

type updateShelfRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=100,safe_string"`
	IsSellable   *bool   `json:"isSellable"`
	IsReservable *bool   `json:"isReservable"`
}

// UpdateShelf renames a shelf or changes its flags
func (h *ShelfHandler) UpdateShelf(c *gin.Context) {
	var req updateShelfRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	shelf, err := h.shelves.Update(c.Request.Context(), application.UpdateShelfCommand{
		ShelfID:      c.Param("id"),
		Name:         req.Name,
		IsSellable:   req.IsSellable,
		IsReservable: req.IsReservable,
		UserID:       middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

// A null or missing newParentId moves the shelf to the root
type moveShelfRequest struct {
	NewParentID *string `json:"newParentId"`
}

func (h *ShelfHandler) MoveShelf(c *gin.Context) {
	var req moveShelfRequest
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		middleware.NewErrorResponder(c, h.logger).RespondWithAppError(appErr)
		return
	}

	shelf, err := h.shelves.Move(c.Request.Context(), application.MoveShelfCommand{
		ShelfID:     c.Param("id"),
		NewParentID: req.NewParentID,
		UserID:      middleware.GetUserID(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

func (h *ShelfHandler) DeleteShelf(c *gin.Context) {
	if err := h.shelves.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ShelfHandler) GetTree(c *gin.Context) {
	tree, err := h.shelves.Tree(c.Request.Context(), c.Param("warehouseId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if tree == nil {
		tree = []application.ShelfNodeDTO{}
	}
	c.JSON(http.StatusOK, gin.H{"warehouseId": c.Param("warehouseId"), "shelves": tree})
}

// GetShelfStock lists the products held directly on the shelf
func (h *ShelfHandler) GetShelfStock(c *gin.Context) {
	stock, err := h.ledger.ShelfStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

// GetTotalStock sums the stock of the shelf and every descendant
func (h *ShelfHandler) GetTotalStock(c *gin.Context) {
	total, err := h.shelves.TotalStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, total)
}
