package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
)

// Calendar resolves the current business date.
type Calendar interface {
	Today(ctx context.Context) string
}

// LimitChecker guards order creation against the configured daily cap
type LimitChecker struct {
	db       *gorm.DB
	calendar Calendar
	maxDaily int
}

func NewLimitChecker(db *gorm.DB, calendar Calendar, maxDaily int) *LimitChecker {
	return &LimitChecker{db: db, calendar: calendar, maxDaily: maxDaily}
}

// CheckDailyOrderLimit rejects new orders once today's sequence reached the cap.
// A cap of 0 means unlimited.
func (l *LimitChecker) CheckDailyOrderLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.maxDaily <= 0 || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		today := l.calendar.Today(c.Request.Context())
		var seq database.OrderSequence
		err := l.db.WithContext(c.Request.Context()).Where("seq_date = ?", today).Take(&seq).Error
		if err != nil {
			if !database.IsNotFound(err) {
				log.Error().Err(err).Msg("Failed to read order sequence for limit check")
			}
			c.Next()
			return
		}

		if seq.LastNumber >= l.maxDaily {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Daily order limit reached",
				"current": seq.LastNumber,
				"limit":   l.maxDaily,
			})
			return
		}

		c.Next()
	}
}
