package inventory

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, logger *activitylog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// InventoryItem is a menu item with its computed stock status
type InventoryItem struct {
	database.MenuItem
	Status string `json:"status"` // ok, low, out
}

// StockPatch updates the stock fields of one menu item; nil fields are kept
type StockPatch struct {
	ID                uint               `json:"id" binding:"required"`
	StockQuantity     *int               `json:"stock_quantity" binding:"omitempty,min=0"`
	LowStockThreshold *int               `json:"low_stock_threshold" binding:"omitempty,min=0"`
	UnitType          *string            `json:"unit_type"`
	Ingredients       map[string]float64 `json:"ingredients"`
	SupplierInfo      *string            `json:"supplier_info"`
}

// StockAdjustment moves stock up or down by Quantity
type StockAdjustment struct {
	ID       uint   `json:"id" binding:"required"`
	Quantity int    `json:"quantity" binding:"min=0"`
	Action   Action `json:"action" binding:"required,oneof=add subtract"`
}

// GetInventory returns every menu item with stock fields and linked raw materials
// GET /api/inventory?filter=low|out
func (h *Handler) GetInventory(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).
		Preload("RawMaterials.RawMaterial").
		Order("category ASC, position ASC")

	switch c.Query("filter") {
	case "":
	case StatusLow:
		query = query.Where("stock_quantity <= low_stock_threshold")
	case StatusOut:
		query = query.Where("stock_quantity <= 0")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter must be low or out"})
		return
	}

	var menuItems []database.MenuItem
	if err := query.Find(&menuItems).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch inventory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}

	items := make([]InventoryItem, 0, len(menuItems))
	for _, m := range menuItems {
		items = append(items, InventoryItem{MenuItem: m, Status: StockStatus(m)})
	}
	c.JSON(http.StatusOK, items)
}

// GetAlerts returns items that need restocking
func (h *Handler) GetAlerts(c *gin.Context) {
	items, err := LowStockItems(h.db.WithContext(c.Request.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch stock alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock alerts"})
		return
	}

	lowStock := []database.MenuItem{}
	outOfStock := []database.MenuItem{}
	for _, item := range items {
		if StockStatus(item) == StatusOut {
			outOfStock = append(outOfStock, item)
		} else {
			lowStock = append(lowStock, item)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"low_stock":    lowStock,
		"out_of_stock": outOfStock,
	})
}

// UpdateInventory applies a batch of stock patches in one transaction
// POST /api/inventory
func (h *Handler) UpdateInventory(c *gin.Context) {
	var patches []StockPatch
	if err := c.ShouldBindJSON(&patches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(patches) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No inventory updates supplied"})
		return
	}

	now := time.Now()
	var missing uint
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, p := range patches {
			updates := map[string]interface{}{}
			if p.StockQuantity != nil {
				updates["stock_quantity"] = *p.StockQuantity
				updates["last_restocked"] = now
			}
			if p.LowStockThreshold != nil {
				updates["low_stock_threshold"] = *p.LowStockThreshold
			}
			if p.UnitType != nil {
				updates["unit_type"] = *p.UnitType
			}
			if p.Ingredients != nil {
				raw, err := json.Marshal(p.Ingredients)
				if err != nil {
					return err
				}
				updates["ingredients"] = string(raw)
			}
			if p.SupplierInfo != nil {
				updates["supplier_info"] = *p.SupplierInfo
			}
			if len(updates) == 0 {
				continue
			}

			res := tx.Model(&database.MenuItem{}).Where("id = ?", p.ID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				missing = p.ID
				return ErrItemNotFound
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found", "id": missing})
			return
		}
		log.Error().Err(err).Msg("Failed to update inventory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update inventory"})
		return
	}

	h.logger.LogActivity(c, "batch_update", "inventory", "", map[string]interface{}{
		"items": len(patches),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Inventory updated successfully"})
}

// AdjustStock adds or subtracts stock for a batch of items
// PATCH /api/inventory
func (h *Handler) AdjustStock(c *gin.Context) {
	var adjustments []StockAdjustment
	if err := c.ShouldBindJSON(&adjustments); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(adjustments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No stock adjustments supplied"})
		return
	}

	var adjusted []database.MenuItem
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, a := range adjustments {
			item, err := Adjust(tx, a.ID, a.Quantity, a.Action)
			if err != nil {
				return err
			}
			adjusted = append(adjusted, *item)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid action. Must be "add" or "subtract"`})
		case errors.Is(err, ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		default:
			log.Error().Err(err).Msg("Failed to adjust stock levels")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to adjust stock levels"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stock levels adjusted successfully", "items": adjusted})
}
