package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
)

// Action is the direction of a stock adjustment
type Action string

const (
	ActionAdd      Action = "add"
	ActionSubtract Action = "subtract"
)

const (
	StatusOK  = "ok"
	StatusLow = "low"
	StatusOut = "out"
)

var (
	ErrInvalidAction = errors.New("invalid stock action")
	ErrItemNotFound  = errors.New("menu item not found")
)

// StockStatus classifies an item against its low stock threshold
func StockStatus(item database.MenuItem) string {
	switch {
	case item.StockQuantity <= 0:
		return StatusOut
	case item.StockQuantity <= item.LowStockThreshold:
		return StatusLow
	default:
		return StatusOK
	}
}

// Adjust adds or subtracts quantity from an item's stock inside tx. Stock
// never drops below zero and the clamp happens in the UPDATE itself.
func Adjust(tx *gorm.DB, id uint, quantity int, action Action) (*database.MenuItem, error) {
	var delta int
	switch action {
	case ActionAdd:
		delta = quantity
	case ActionSubtract:
		delta = -quantity
	default:
		return nil, ErrInvalidAction
	}

	updates := map[string]interface{}{
		"stock_quantity": gorm.Expr("CASE WHEN stock_quantity + ? < 0 THEN 0 ELSE stock_quantity + ? END", delta, delta),
	}
	if action == ActionAdd {
		updates["last_restocked"] = time.Now()
	}

	res := tx.Model(&database.MenuItem{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to adjust stock of item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}

	var item database.MenuItem
	if err := tx.Take(&item, id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload item %d: %w", id, err)
	}

	if item.StockQuantity <= item.LowStockThreshold {
		log.Warn().
			Uint("item_id", item.ID).
			Str("name", item.Name).
			Int("stock_quantity", item.StockQuantity).
			Int("low_stock_threshold", item.LowStockThreshold).
			Msg("Low stock alert")
	}
	return &item, nil
}

// LowStockItems returns menu items at or below their threshold, emptiest first
func LowStockItems(db *gorm.DB) ([]database.MenuItem, error) {
	items := []database.MenuItem{}
	err := db.Where("stock_quantity <= low_stock_threshold OR stock_quantity <= 0").
		Order("stock_quantity ASC, name ASC").
		Find(&items).Error
	return items, err
}
