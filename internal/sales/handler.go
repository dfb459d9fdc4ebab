package sales

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
)

type Handler struct {
	service *Service
	audit   *activitylog.Logger
}

func NewHandler(service *Service, audit *activitylog.Logger) *Handler {
	return &Handler{service: service, audit: audit}
}

// RangeQuery is the date range accepted by the listing and report endpoints
type RangeQuery struct {
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
}

// List returns the daily counters, newest first
func (h *Handler) List(c *gin.Context) {
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.service.List(c.Request.Context(), q.StartDate, q.EndDate)
	if err != nil {
		if isRangeError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("Failed to fetch daily sales")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch daily sales"})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// Today returns today's order count and revenue
func (h *Handler) Today(c *gin.Context) {
	row, err := h.service.Today(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch today's sales")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch today's sales"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sale_date":     row.SaleDate,
		"total_orders":  row.TotalOrders,
		"total_revenue": row.TotalRevenue,
	})
}

// Reset zeroes today's counters
func (h *Handler) Reset(c *gin.Context) {
	before, err := h.service.Today(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read daily sales before reset")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset daily sales"})
		return
	}

	row, err := h.service.ResetToday(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to reset daily sales")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset daily sales"})
		return
	}

	log.Warn().Str("sale_date", row.SaleDate).
		Int("previous_orders", before.TotalOrders).
		Str("previous_revenue", before.TotalRevenue.String()).
		Msg("Daily sales reset")
	h.audit.LogActivity(c, "reset", "daily_sales", row.SaleDate, map[string]interface{}{
		"previous_orders":  before.TotalOrders,
		"previous_revenue": before.TotalRevenue,
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "sale_date": row.SaleDate})
}

// Report returns revenue, order counts and top items for a date range
func (h *Handler) Report(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) loadReport(c *gin.Context) (*Report, bool) {
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	report, err := h.service.Report(c.Request.Context(), q.StartDate, q.EndDate)
	if err != nil {
		if isRangeError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		log.Error().Err(err).Str("start", q.StartDate).Str("end", q.EndDate).Msg("Failed to generate sales report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate sales report"})
		return nil, false
	}
	return report, true
}

func isRangeError(err error) bool {
	return errors.Is(err, ErrMissingDates) || errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidRange)
}
