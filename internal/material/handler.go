package material

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMaterialNotFound = errors.New("raw material not found")

type Handler struct {
	db     *gorm.DB
	logger *activitylog.Logger
}

func NewHandler(db *gorm.DB, logger *activitylog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

type CreateMaterialInput struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	UnitType      string           `json:"unit_type"`
	CurrentStock  *decimal.Decimal `json:"current_stock"`
	MinStockLevel *decimal.Decimal `json:"min_stock_level"`
	SupplierInfo  string           `json:"supplier_info"`
}

// MaterialPatch updates one raw material; nil fields are kept
type MaterialPatch struct {
	ID            uint             `json:"id"`
	Name          *string          `json:"name" binding:"omitempty,min=1"`
	Description   *string          `json:"description"`
	UnitType      *string          `json:"unit_type" binding:"omitempty,min=1"`
	CurrentStock  *decimal.Decimal `json:"current_stock"`
	MinStockLevel *decimal.Decimal `json:"min_stock_level"`
	SupplierInfo  *string          `json:"supplier_info"`
}

func (p MaterialPatch) updates() (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.UnitType != nil {
		updates["unit_type"] = *p.UnitType
	}
	if p.CurrentStock != nil {
		if p.CurrentStock.IsNegative() {
			return nil, errors.New("current_stock must not be negative")
		}
		updates["current_stock"] = *p.CurrentStock
	}
	if p.MinStockLevel != nil {
		if p.MinStockLevel.IsNegative() {
			return nil, errors.New("min_stock_level must not be negative")
		}
		updates["min_stock_level"] = *p.MinStockLevel
	}
	if p.SupplierInfo != nil {
		updates["supplier_info"] = *p.SupplierInfo
	}
	return updates, nil
}

// List returns all raw materials by name
func (h *Handler) List(c *gin.Context) {
	materials := []database.RawMaterial{}
	if err := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&materials).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch raw materials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch raw materials"})
		return
	}
	c.JSON(http.StatusOK, materials)
}

// Create adds a new raw material
func (h *Handler) Create(c *gin.Context) {
	var input CreateMaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material := database.RawMaterial{
		Name:          input.Name,
		Description:   input.Description,
		UnitType:      input.UnitType,
		MinStockLevel: decimal.NewFromInt(database.DefaultMinStockLevel),
		SupplierInfo:  input.SupplierInfo,
	}
	if material.UnitType == "" {
		material.UnitType = database.DefaultMaterialUnit
	}
	if input.CurrentStock != nil {
		material.CurrentStock = *input.CurrentStock
	}
	if input.MinStockLevel != nil {
		material.MinStockLevel = *input.MinStockLevel
	}
	if material.CurrentStock.IsNegative() || material.MinStockLevel.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stock levels must not be negative"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&material).Error; err != nil {
		log.Error().Err(err).Str("name", material.Name).Msg("Failed to create raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create raw material"})
		return
	}

	c.JSON(http.StatusCreated, material)
}

// Get returns a single raw material
func (h *Handler) Get(c *gin.Context) {
	material, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, material)
}

// Update patches a raw material
func (h *Handler) Update(c *gin.Context) {
	material, ok := h.load(c)
	if !ok {
		return
	}

	var patch MaterialPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updates, err := patch.updates()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	before := *material
	db := h.db.WithContext(c.Request.Context())
	if err := db.Model(material).Updates(updates).Error; err != nil {
		log.Error().Err(err).Uint("id", material.ID).Msg("Failed to update raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update raw material"})
		return
	}
	if err := db.Take(material, material.ID).Error; err != nil {
		log.Error().Err(err).Uint("id", material.ID).Msg("Failed to reload raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update raw material"})
		return
	}

	h.logger.LogUpdate(c, "raw_material", strconv.FormatUint(uint64(material.ID), 10), before, material)

	c.JSON(http.StatusOK, material)
}

// BatchUpdate applies several material patches in one transaction
// PATCH /api/raw-materials
func (h *Handler) BatchUpdate(c *gin.Context) {
	var patches []MaterialPatch
	if err := c.ShouldBindJSON(&patches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(patches) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No raw material updates supplied"})
		return
	}

	type pending struct {
		id      uint
		updates map[string]interface{}
	}
	var work []pending
	for _, p := range patches {
		if p.ID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every update needs an id"})
			return
		}
		updates, err := p.updates()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(updates) > 0 {
			work = append(work, pending{id: p.ID, updates: updates})
		}
	}

	var missing uint
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, w := range work {
			res := tx.Model(&database.RawMaterial{}).Where("id = ?", w.id).Updates(w.updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				missing = w.id
				return errMaterialNotFound
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errMaterialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Raw material not found", "id": missing})
			return
		}
		log.Error().Err(err).Msg("Failed to update raw materials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update raw materials"})
		return
	}

	h.logger.LogActivity(c, "batch_update", "raw_material", "", map[string]interface{}{
		"items": len(work),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Raw materials updated successfully"})
}

// Delete removes a raw material and every dish link to it
func (h *Handler) Delete(c *gin.Context) {
	material, ok := h.load(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("raw_material_id = ?", material.ID).Delete(&database.DishRawMaterial{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.RawMaterial{}, material.ID).Error
	})
	if err != nil {
		log.Error().Err(err).Uint("id", material.ID).Msg("Failed to delete raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete raw material"})
		return
	}

	h.logger.LogDelete(c, "raw_material", strconv.FormatUint(uint64(material.ID), 10), map[string]interface{}{
		"name":          material.Name,
		"current_stock": material.CurrentStock,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Raw material deleted"})
}

// GetAlerts returns materials at or below their minimum level
func (h *Handler) GetAlerts(c *gin.Context) {
	materials, err := LowStock(h.db.WithContext(c.Request.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch raw material alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch raw material alerts"})
		return
	}
	c.JSON(http.StatusOK, materials)
}

// LowStock returns raw materials whose stock is at or below the minimum level
func LowStock(db *gorm.DB) ([]database.RawMaterial, error) {
	materials := []database.RawMaterial{}
	err := db.Where("current_stock <= min_stock_level").
		Order("current_stock ASC, name ASC").
		Find(&materials).Error
	return materials, err
}

// === Dish / raw material links ===

type LinkMaterialInput struct {
	DishID           uint            `json:"dish_id" binding:"required"`
	RawMaterialID    uint            `json:"raw_material_id" binding:"required"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
}

// GetDishMaterials returns the raw materials a dish needs and how many
// portions current stock can make
func (h *Handler) GetDishMaterials(c *gin.Context) {
	dishID, err := strconv.ParseUint(c.Param("dish_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dish id"})
		return
	}

	links := []database.DishRawMaterial{}
	if err := h.db.WithContext(c.Request.Context()).
		Preload("RawMaterial").
		Where("dish_id = ?", dishID).
		Find(&links).Error; err != nil {
		log.Error().Err(err).Uint64("dish_id", dishID).Msg("Failed to fetch dish raw materials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dish raw materials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dish_id":       dishID,
		"raw_materials": links,
		"max_portions":  MaxPortions(links),
	})
}

// MaxPortions is how many portions the linked stock can make. Links with a
// zero requirement do not limit it; a dish with no limiting links reports 0.
func MaxPortions(links []database.DishRawMaterial) int64 {
	var portions *decimal.Decimal
	for _, link := range links {
		if !link.QuantityRequired.IsPositive() {
			continue
		}
		canMake := link.RawMaterial.CurrentStock.Div(link.QuantityRequired).Floor()
		if portions == nil || canMake.LessThan(*portions) {
			portions = &canMake
		}
	}
	if portions == nil || portions.IsNegative() {
		return 0
	}
	return portions.IntPart()
}

// LinkMaterial creates or updates the quantity of a raw material in a dish
func (h *Handler) LinkMaterial(c *gin.Context) {
	var input LinkMaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.QuantityRequired.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity_required must be positive"})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var dishes, materials int64
	if err := db.Model(&database.MenuItem{}).Where("id = ?", input.DishID).Count(&dishes).Error; err != nil {
		log.Error().Err(err).Msg("Failed to check dish")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link raw material"})
		return
	}
	if dishes == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	if err := db.Model(&database.RawMaterial{}).Where("id = ?", input.RawMaterialID).Count(&materials).Error; err != nil {
		log.Error().Err(err).Msg("Failed to check raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link raw material"})
		return
	}
	if materials == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Raw material not found"})
		return
	}

	link := database.DishRawMaterial{
		DishID:           input.DishID,
		RawMaterialID:    input.RawMaterialID,
		QuantityRequired: input.QuantityRequired,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dish_id"}, {Name: "raw_material_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity_required"}),
	}).Create(&link).Error
	if err != nil {
		log.Error().Err(err).Uint("dish_id", input.DishID).Uint("raw_material_id", input.RawMaterialID).Msg("Failed to link raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link raw material"})
		return
	}

	var stored database.DishRawMaterial
	if err := db.Preload("RawMaterial").
		Where("dish_id = ? AND raw_material_id = ?", input.DishID, input.RawMaterialID).
		Take(&stored).Error; err != nil {
		log.Error().Err(err).Msg("Failed to reload dish raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link raw material"})
		return
	}

	c.JSON(http.StatusOK, stored)
}

// UnlinkMaterial removes a raw material from a dish
func (h *Handler) UnlinkMaterial(c *gin.Context) {
	result := h.db.WithContext(c.Request.Context()).
		Where("dish_id = ? AND raw_material_id = ?", c.Param("dish_id"), c.Param("raw_material_id")).
		Delete(&database.DishRawMaterial{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to unlink raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unlink raw material"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Raw material unlinked"})
}

func (h *Handler) load(c *gin.Context) (*database.RawMaterial, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid raw material id"})
		return nil, false
	}

	var material database.RawMaterial
	if err := h.db.WithContext(c.Request.Context()).Take(&material, uint(id)).Error; err != nil {
		if database.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Raw material not found"})
			return nil, false
		}
		log.Error().Err(err).Uint64("id", id).Msg("Failed to fetch raw material")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch raw material"})
		return nil, false
	}
	return &material, true
}
