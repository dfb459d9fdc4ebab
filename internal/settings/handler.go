package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// List returns every stored setting
func (h *Handler) List(c *gin.Context) {
	var settings []database.SystemSetting
	if err := h.db.WithContext(c.Request.Context()).Order("setting_name ASC").Find(&settings).Error; err != nil {
		log.Error().Err(err).Msg("Failed to fetch settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// Update creates or replaces a setting
func (h *Handler) Update(c *gin.Context) {
	name := c.Param("name")

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if name == TimezoneKey {
		if _, err := LoadZone(req.Value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timezone"})
			return
		}
	}

	setting := database.SystemSetting{SettingName: name, SettingValue: req.Value}
	err := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		log.Error().Err(err).Str("setting", name).Msg("Failed to update setting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
		return
	}

	c.JSON(http.StatusOK, setting)
}
