package order

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
)

var registerOnce sync.Once

// registerValidators adds the orderstatus tag to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
			return database.OrderStatus(fl.Field().String()).Valid()
		}); err != nil {
			log.Error().Err(err).Msg("Failed to register orderstatus validator")
		}
	})
}

type Handler struct {
	service *Service
	audit   *activitylog.Logger
}

func NewHandler(service *Service, audit *activitylog.Logger) *Handler {
	registerValidators()
	return &Handler{service: service, audit: audit}
}

type CreateOrderRequest struct {
	Items []database.OrderItem `json:"items" binding:"required,min=1"`
	Total *decimal.Decimal     `json:"total"`
}

type UpdateOrderRequest struct {
	Items  *[]database.OrderItem `json:"items"`
	Total  *decimal.Decimal      `json:"total"`
	Status *database.OrderStatus `json:"status" binding:"omitempty,orderstatus"`
}

// List returns active orders, oldest first
// GET /api/orders?status=preparing,ready&includeServed=true
func (h *Handler) List(c *gin.Context) {
	statuses, err := ParseStatusFilter(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orders, err := h.service.List(c.Request.Context(), Filter{
		Statuses:      statuses,
		IncludeServed: c.Query("includeServed") == "true",
	})
	if err != nil {
		h.fail(c, err, "fetch orders")
		return
	}

	c.JSON(http.StatusOK, orders)
}

// Get returns a single order
func (h *Handler) Get(c *gin.Context) {
	order, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "fetch order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// Status lets a customer follow one order without signing in
// GET /api/orders/:id/status
func (h *Handler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "fetch order status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Queue lists today's open order numbers and their status for the pickup screen
// GET /api/orders/queue
func (h *Handler) Queue(c *gin.Context) {
	queue, err := h.service.Queue(c.Request.Context())
	if err != nil {
		h.fail(c, err, "fetch order queue")
		return
	}
	c.JSON(http.StatusOK, queue)
}

// Create places a new order
func (h *Handler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.Create(c.Request.Context(), CreateInput{Items: req.Items, Total: req.Total})
	if err != nil {
		h.fail(c, err, "create order")
		return
	}

	log.Info().Str("order_id", order.ID).Str("order_number", order.OrderNumber).
		Str("total", order.Total.String()).Msg("Order created")

	c.JSON(http.StatusCreated, gin.H{
		"id":           order.ID,
		"success":      true,
		"order_number": order.OrderNumber,
	})
}

// Update changes items, total or status of an order
func (h *Handler) Update(c *gin.Context) {
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	order, err := h.service.Update(c.Request.Context(), id, Patch{
		Items:  req.Items,
		Total:  req.Total,
		Status: req.Status,
	})
	if err != nil {
		h.fail(c, err, "update order")
		return
	}

	if req.Status != nil {
		log.Info().Str("order_id", id).Str("status", string(*req.Status)).Msg("Order status changed")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// Delete removes an order
func (h *Handler) Delete(c *gin.Context) {
	order, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "delete order")
		return
	}

	h.audit.LogDelete(c, "order", order.ID, gin.H{
		"order_number": order.OrderNumber,
		"order_date":   order.OrderDate,
		"status":       order.Status,
		"total":        order.Total,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) fail(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, ErrNoFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidItems),
		errors.Is(err, ErrInvalidTotal):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("order_id", c.Param("id")).Msg("Failed to " + action)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}
