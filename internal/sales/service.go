package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yuditriaji/cafe-backend/internal/settings"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const topItemsLimit = 10

var (
	ErrMissingDates = errors.New("startDate and endDate parameters are required")
	ErrInvalidDate  = errors.New("dates must be formatted as YYYY-MM-DD")
	ErrInvalidRange = errors.New("endDate must not be before startDate")
)

// Calendar resolves the current business date.
type Calendar interface {
	Today(ctx context.Context) string
}

// Service owns the daily_sales rolling counters
type Service struct {
	db       *gorm.DB
	calendar Calendar
}

func NewService(db *gorm.DB, calendar Calendar) *Service {
	return &Service{db: db, calendar: calendar}
}

// DayTotal is one day of a range report
type DayTotal struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// TopItem ranks a menu item by quantity served
type TopItem struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Report is the sales summary over an inclusive date range
type Report struct {
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int             `json:"total_orders"`
	DailySales   []DayTotal      `json:"daily_sales"`
	TopItems     []TopItem       `json:"top_items"`
}

// RecordServedOrder adds one served order of amount to the row for date.
// It must run inside the transaction that marks the order served. Calling it
// twice for the same order counts it twice.
func (s *Service) RecordServedOrder(tx *gorm.DB, date string, amount decimal.Decimal) error {
	row := database.DailySale{SaleDate: date, TotalOrders: 1, TotalRevenue: amount}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sale_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_orders":  gorm.Expr("daily_sales.total_orders + 1"),
			"total_revenue": gorm.Expr("daily_sales.total_revenue + ?", amount),
			"updated_at":    time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record served order for %s: %w", date, err)
	}
	return nil
}

// Today returns today's counters, zero when no order was served yet.
func (s *Service) Today(ctx context.Context) (database.DailySale, error) {
	return s.Day(ctx, s.calendar.Today(ctx))
}

// Day returns the counters for date, zero when the row is absent.
func (s *Service) Day(ctx context.Context, date string) (database.DailySale, error) {
	var row database.DailySale
	err := s.db.WithContext(ctx).Where("sale_date = ?", date).Take(&row).Error
	if database.IsNotFound(err) {
		return database.DailySale{SaleDate: date, TotalRevenue: decimal.Zero}, nil
	}
	if err != nil {
		return database.DailySale{}, fmt.Errorf("failed to load daily sales for %s: %w", date, err)
	}
	return row, nil
}

// List returns rows newest first; with both bounds set it is limited to that range.
func (s *Service) List(ctx context.Context, start, end string) ([]database.DailySale, error) {
	q := s.db.WithContext(ctx).Order("sale_date DESC")
	if start != "" || end != "" {
		if err := validateRange(start, end); err != nil {
			return nil, err
		}
		q = q.Where("sale_date BETWEEN ? AND ?", start, end)
	}

	rows := []database.DailySale{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily sales: %w", err)
	}
	return rows, nil
}

// ResetToday zeroes today's counters without touching any order.
func (s *Service) ResetToday(ctx context.Context) (database.DailySale, error) {
	today := s.calendar.Today(ctx)
	row := database.DailySale{SaleDate: today, TotalRevenue: decimal.Zero}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sale_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_orders":  0,
			"total_revenue": decimal.Zero,
			"updated_at":    time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return database.DailySale{}, fmt.Errorf("failed to reset daily sales for %s: %w", today, err)
	}
	return s.Day(ctx, today)
}

// OpenDay makes sure a zero row exists for date.
func (s *Service) OpenDay(ctx context.Context, date string) error {
	row := database.DailySale{SaleDate: date, TotalRevenue: decimal.Zero}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sale_date"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to open day %s: %w", date, err)
	}
	return nil
}

// Report summarises an inclusive range. Revenue and order counts come from
// the rolling counters; item rankings come from orders served in the range.
func (s *Service) Report(ctx context.Context, start, end string) (*Report, error) {
	if start == "" || end == "" {
		return nil, ErrMissingDates
	}
	rows, err := s.List(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &Report{
		StartDate:    start,
		EndDate:      end,
		TotalRevenue: decimal.Zero,
		DailySales:   make([]DayTotal, 0, len(rows)),
	}
	for _, row := range rows {
		report.TotalOrders += row.TotalOrders
		report.TotalRevenue = report.TotalRevenue.Add(row.TotalRevenue)
		report.DailySales = append(report.DailySales, DayTotal{
			Date:    row.SaleDate,
			Revenue: row.TotalRevenue,
			Orders:  row.TotalOrders,
		})
	}

	report.TopItems, err = s.topItems(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) topItems(ctx context.Context, start, end string) ([]TopItem, error) {
	var orders []database.Order
	err := s.db.WithContext(ctx).
		Select("id", "items").
		Where("served_date BETWEEN ? AND ?", start, end).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load served orders: %w", err)
	}

	type key struct {
		id   uint
		name string
	}
	totals := map[key]*TopItem{}
	for _, o := range orders {
		for _, item := range o.Items {
			k := key{item.ID, item.Name}
			t, ok := totals[k]
			if !ok {
				t = &TopItem{ID: item.ID, Name: item.Name, Revenue: decimal.Zero}
				totals[k] = t
			}
			t.Quantity += item.Quantity
			t.Revenue = t.Revenue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}

	items := make([]TopItem, 0, len(totals))
	for _, t := range totals {
		items = append(items, *t)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Quantity != items[j].Quantity {
			return items[i].Quantity > items[j].Quantity
		}
		if c := items[i].Revenue.Cmp(items[j].Revenue); c != 0 {
			return c > 0
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > topItemsLimit {
		items = items[:topItemsLimit]
	}
	return items, nil
}

func validateRange(start, end string) error {
	if start == "" || end == "" {
		return ErrMissingDates
	}
	from, err := settings.ParseDate(start)
	if err != nil {
		return ErrInvalidDate
	}
	to, err := settings.ParseDate(end)
	if err != nil {
		return ErrInvalidDate
	}
	if to.Before(from) {
		return ErrInvalidRange
	}
	return nil
}
