package activitylog

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/session"
	"gorm.io/gorm"
)

// Logger handles activity logging for audit trail
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new activity logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogActivity creates an activity log entry for the signed-in user.
// Failures are logged and swallowed; the audited action already happened.
func (l *Logger) LogActivity(c *gin.Context, action, entityType, entityID string, details interface{}) {
	entry := database.ActivityLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  c.ClientIP(),
	}
	if s, ok := session.From(c); ok {
		entry.UserID = s.UserID
		entry.Username = s.Username
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = string(raw)
		}
	}

	if err := l.db.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
		log.Error().Err(err).Str("action", action).Str("entity_type", entityType).Msg("Failed to write activity log")
	}
}

// LogCreate logs a create action
func (l *Logger) LogCreate(c *gin.Context, entityType, entityID string, newData interface{}) {
	l.LogActivity(c, "create", entityType, entityID, map[string]interface{}{
		"new": newData,
	})
}

// LogUpdate logs an update action with old and new values
func (l *Logger) LogUpdate(c *gin.Context, entityType, entityID string, oldData, newData interface{}) {
	l.LogActivity(c, "update", entityType, entityID, map[string]interface{}{
		"old": oldData,
		"new": newData,
	})
}

// LogDelete logs a delete action
func (l *Logger) LogDelete(c *gin.Context, entityType, entityID string, oldData interface{}) {
	l.LogActivity(c, "delete", entityType, entityID, map[string]interface{}{
		"deleted": oldData,
	})
}

// List returns the newest entries first.
func (l *Logger) List(c *gin.Context, limit int) ([]database.ActivityLog, error) {
	logs := []database.ActivityLog{}
	err := l.db.WithContext(c.Request.Context()).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
