package scheduler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuditriaji/cafe-backend/internal/inventory"
	"github.com/yuditriaji/cafe-backend/internal/material"
	"github.com/yuditriaji/cafe-backend/internal/settings"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/email"
	"gorm.io/gorm"
)

// Calendar resolves the current business date.
type Calendar interface {
	Today(ctx context.Context) string
}

// Sales is the part of the daily sales service the scheduler drives.
type Sales interface {
	OpenDay(ctx context.Context, date string) error
	Day(ctx context.Context, date string) (database.DailySale, error)
}

// Mailer sends the low stock digest.
type Mailer interface {
	IsConfigured() bool
	SendLowStockDigest(ctx context.Context, to, date string, lines []email.StockLine) error
}

// Scheduler runs the café's background jobs
type Scheduler struct {
	db       *gorm.DB
	calendar Calendar
	sales    Sales
	mailer   Mailer
	alertTo  string
	interval time.Duration

	mu         sync.Mutex
	lastDay    string
	lastDigest string
}

// NewScheduler creates a scheduler. mailer may be nil.
func NewScheduler(db *gorm.DB, calendar Calendar, sales Sales, mailer Mailer, alertTo string, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		db:       db,
		calendar: calendar,
		sales:    sales,
		mailer:   mailer,
		alertTo:  alertTo,
		interval: interval,
	}
}

// Start runs the jobs immediately and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.Run(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Scheduler stopped")
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	}()
	log.Info().Dur("interval", s.interval).Msg("Scheduler started")
}

// Run executes all scheduled jobs once
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Debug().Msg("Running scheduler")
	s.RollOverDay(ctx)
	s.SweepLowStock(ctx)
}

// RollOverDay opens today's sales row when the business date has changed
// since the last run and logs the closing totals of the previous day.
func (s *Scheduler) RollOverDay(ctx context.Context) {
	today := s.calendar.Today(ctx)
	if today == s.lastDay {
		return
	}

	previous := s.lastDay
	if previous == "" {
		if t, err := settings.ParseDate(today); err == nil {
			previous = t.AddDate(0, 0, -1).Format(settings.DateLayout)
		}
	}

	if previous != "" {
		closing, err := s.sales.Day(ctx, previous)
		if err != nil {
			log.Error().Err(err).Str("date", previous).Msg("Failed to load closing sales")
		} else {
			log.Info().
				Str("date", previous).
				Int("total_orders", closing.TotalOrders).
				Str("total_revenue", closing.TotalRevenue.StringFixed(2)).
				Msg("Day closed")
		}
	}

	if err := s.sales.OpenDay(ctx, today); err != nil {
		log.Error().Err(err).Str("date", today).Msg("Failed to open business day")
		return
	}
	s.lastDay = today
	log.Info().Str("date", today).Msg("Business day opened")
}

// SweepLowStock logs every menu item and raw material at or below its
// restock level and mails one digest per business day.
func (s *Scheduler) SweepLowStock(ctx context.Context) {
	db := s.db.WithContext(ctx)

	items, err := inventory.LowStockItems(db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep low stock menu items")
		return
	}
	materials, err := material.LowStock(db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep low stock raw materials")
		return
	}

	if len(items) == 0 && len(materials) == 0 {
		return
	}
	log.Warn().Int("menu_items", len(items)).Int("raw_materials", len(materials)).Msg("Low stock")

	if s.mailer == nil || !s.mailer.IsConfigured() || s.alertTo == "" {
		return
	}
	today := s.calendar.Today(ctx)
	if s.lastDigest == today {
		return
	}

	lines := make([]email.StockLine, 0, len(items)+len(materials))
	for _, item := range items {
		lines = append(lines, email.StockLine{
			Kind:      "menu item",
			Name:      item.Name,
			Stock:     strconv.Itoa(item.StockQuantity),
			Threshold: strconv.Itoa(item.LowStockThreshold),
			Unit:      item.UnitType,
		})
	}
	for _, m := range materials {
		lines = append(lines, email.StockLine{
			Kind:      "raw material",
			Name:      m.Name,
			Stock:     m.CurrentStock.String(),
			Threshold: m.MinStockLevel.String(),
			Unit:      m.UnitType,
		})
	}

	if err := s.mailer.SendLowStockDigest(ctx, s.alertTo, today, lines); err != nil {
		log.Error().Err(err).Str("to", s.alertTo).Msg("Failed to send low stock digest")
		return
	}
	s.lastDigest = today
	log.Info().Str("to", s.alertTo).Int("lines", len(lines)).Msg("Low stock digest sent")
}
