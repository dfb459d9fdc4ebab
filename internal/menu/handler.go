package menu

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
)

// displayOrder puts positioned items first, then falls back to category and name.
const displayOrder = "CASE WHEN position IS NULL THEN 1 ELSE 0 END, position ASC, category ASC, name ASC"

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, logger *activitylog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type CreateMenuItemRequest struct {
	Name              string           `json:"name" binding:"required"`
	Price             *decimal.Decimal `json:"price" binding:"required"`
	Category          string           `json:"category"`
	IsAvailable       *bool            `json:"is_available"`
	Position          *int             `json:"position"`
	StockQuantity     int              `json:"stock_quantity" binding:"min=0"`
	LowStockThreshold *int             `json:"low_stock_threshold" binding:"omitempty,min=0"`
	UnitType          *string          `json:"unit_type"`
}

type UpdateMenuItemRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	IsAvailable *bool            `json:"is_available"`
}

type PositionUpdate struct {
	ID       uint `json:"id" binding:"required"`
	Position *int `json:"position"`
}

type ReorderRequest struct {
	MenuItems []PositionUpdate `json:"menuItems" binding:"required,min=1,dive"`
}

// List returns available items in display order
func (h *Handler) List(c *gin.Context) {
	var items []database.MenuItem
	if err := h.db.WithContext(c.Request.Context()).
		Where("is_available = ?", true).
		Order(displayOrder).
		Find(&items).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch menu")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu"})
		return
	}
	if items == nil {
		items = []database.MenuItem{}
	}
	c.JSON(http.StatusOK, items)
}

// ListAll returns every item including unavailable ones
func (h *Handler) ListAll(c *gin.Context) {
	items := []database.MenuItem{}
	if err := h.db.WithContext(c.Request.Context()).Order(displayOrder).Find(&items).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch menu")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// Get returns a single menu item
func (h *Handler) Get(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create adds a new menu item
func (h *Handler) Create(c *gin.Context) {
	var req CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return
	}

	item := database.MenuItem{
		Name:              req.Name,
		Price:             *req.Price,
		Category:          req.Category,
		IsAvailable:       true,
		Position:          req.Position,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: database.DefaultLowStockThreshold,
		UnitType:          database.DefaultMenuUnit,
	}
	if req.IsAvailable != nil {
		item.IsAvailable = *req.IsAvailable
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if req.UnitType != nil && *req.UnitType != "" {
		item.UnitType = *req.UnitType
	}

	db := h.db.WithContext(c.Request.Context())
	if item.Position == nil {
		var last int
		if err := db.Model(&database.MenuItem{}).Select("COALESCE(MAX(position), -1)").Scan(&last).Error; err != nil {
			log.Error().Err(err).Msg("Failed to read menu positions")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu item"})
			return
		}
		next := last + 1
		item.Position = &next
	}

	if err := db.Create(&item).Error; err != nil {
		log.Error().Err(err).Str("name", item.Name).Msg("Failed to create menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu item"})
		return
	}

	h.logger.LogCreate(c, "menu_item", strconv.FormatUint(uint64(item.ID), 10), map[string]interface{}{
		"name":  item.Name,
		"price": item.Price,
	})

	c.JSON(http.StatusCreated, item)
}

// Update merges the supplied fields into a menu item
func (h *Handler) Update(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
			return
		}
		updates["price"] = *req.Price
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.IsAvailable != nil {
		updates["is_available"] = *req.IsAvailable
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	before := editableFields(item)
	db := h.db.WithContext(c.Request.Context())
	if err := db.Model(item).Updates(updates).Error; err != nil {
		log.Error().Err(err).Uint("id", item.ID).Msg("Failed to update menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}
	if err := db.Take(item, item.ID).Error; err != nil {
		log.Error().Err(err).Uint("id", item.ID).Msg("Failed to reload menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}

	h.logger.LogUpdate(c, "menu_item", strconv.FormatUint(uint64(item.ID), 10), before, editableFields(item))

	c.JSON(http.StatusOK, item)
}

// editableFields snapshots what Update may change.
func editableFields(item *database.MenuItem) map[string]interface{} {
	return map[string]interface{}{
		"name":         item.Name,
		"price":        item.Price,
		"category":     item.Category,
		"is_available": item.IsAvailable,
	}
}

// Delete removes a menu item and its raw material links
func (h *Handler) Delete(c *gin.Context) {
	item, ok := h.load(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dish_id = ?", item.ID).Delete(&database.DishRawMaterial{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.MenuItem{}, item.ID).Error
	})
	if err != nil {
		log.Error().Err(err).Uint("id", item.ID).Msg("Failed to delete menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu item"})
		return
	}

	h.logger.LogDelete(c, "menu_item", strconv.FormatUint(uint64(item.ID), 10), map[string]interface{}{
		"name":     item.Name,
		"price":    item.Price,
		"category": item.Category,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

var errUnknownItem = errors.New("menu item not found")

// Reorder stores new display positions. A missing position defaults to the
// item's index in the request.
func (h *Handler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var missing uint
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for i, u := range req.MenuItems {
			position := i
			if u.Position != nil {
				position = *u.Position
			}
			res := tx.Model(&database.MenuItem{}).Where("id = ?", u.ID).Update("position", position)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				missing = u.ID
				return errUnknownItem
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnknownItem) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Menu item %d not found", missing)})
			return
		}
		log.Error().Err(err).Msg("Failed to reorder menu")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu positions"})
		return
	}

	log.Info().Int("items", len(req.MenuItems)).Msg("Menu reordered")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) load(c *gin.Context) (*database.MenuItem, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid menu item id"})
		return nil, false
	}

	var item database.MenuItem
	if err := h.db.WithContext(c.Request.Context()).Take(&item, uint(id)).Error; err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
			return nil, false
		}
		log.Error().Err(err).Uint64("id", id).Msg("Failed to fetch menu item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu item"})
		return nil, false
	}
	return &item, true
}
