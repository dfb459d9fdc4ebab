package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/events"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrNoFields      = errors.New("no fields to update")
	ErrInvalidStatus = errors.New("invalid status value")
	ErrInvalidItems  = errors.New("items must contain at least one entry with quantity of 1 or more and a non-negative price")
	ErrInvalidTotal  = errors.New("total must not be negative")
)

// Calendar resolves the current business date.
type Calendar interface {
	Today(ctx context.Context) string
}

// SalesRecorder adds a served order to the day's counters inside tx.
type SalesRecorder interface {
	RecordServedOrder(tx *gorm.DB, date string, amount decimal.Decimal) error
}

// Service owns the order lifecycle
type Service struct {
	db        *gorm.DB
	sales     SalesRecorder
	calendar  Calendar
	publisher events.Publisher
}

func NewService(db *gorm.DB, sales SalesRecorder, calendar Calendar, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{db: db, sales: sales, calendar: calendar, publisher: publisher}
}

// CreateInput is a new order. A nil Total is computed from the items.
type CreateInput struct {
	Items []database.OrderItem
	Total *decimal.Decimal
}

// Patch is a partial order update; nil fields are left untouched.
type Patch struct {
	Items  *[]database.OrderItem
	Total  *decimal.Decimal
	Status *database.OrderStatus
}

func (p Patch) empty() bool {
	return p.Items == nil && p.Total == nil && p.Status == nil
}

// Filter narrows List. Served orders are excluded unless IncludeServed is set.
type Filter struct {
	Statuses      []database.OrderStatus
	IncludeServed bool
}

// ParseStatusFilter splits a comma separated status list, rejecting unknown values.
func ParseStatusFilter(raw string) ([]database.OrderStatus, error) {
	var statuses []database.OrderStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		status := database.OrderStatus(part)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, part)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ItemsTotal is Σ price × quantity.
func ItemsTotal(items []database.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func validateItems(items []database.OrderItem) error {
	if len(items) == 0 {
		return ErrInvalidItems
	}
	for _, item := range items {
		if item.Quantity < 1 || item.Price.IsNegative() {
			return ErrInvalidItems
		}
	}
	return nil
}

// Create stores a new order in status preparing with the next order number of the day.
func (s *Service) Create(ctx context.Context, in CreateInput) (*database.Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	total := ItemsTotal(in.Items)
	if in.Total != nil {
		if in.Total.IsNegative() {
			return nil, ErrInvalidTotal
		}
		total = *in.Total
	}

	today := s.calendar.Today(ctx)
	order := &database.Order{
		OrderDate: today,
		Items:     in.Items,
		Total:     total,
		Status:    database.StatusPreparing,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := nextOrderNumber(tx, today)
		if err != nil {
			return err
		}
		order.OrderNumber = fmt.Sprintf("%03d", n)
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.publish(ctx, events.OrderCreated, order)
	return order, nil
}

// nextOrderNumber bumps the day's counter and reads it back. The upsert locks
// the counter row until tx ends, so concurrent creates take turns.
func nextOrderNumber(tx *gorm.DB, date string) (int, error) {
	seq := database.OrderSequence{SeqDate: date, LastNumber: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "seq_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_number": gorm.Expr("order_sequences.last_number + 1"),
		}),
	}).Create(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("failed to bump order sequence: %w", err)
	}
	if err := tx.Where("seq_date = ?", date).Take(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to read order sequence: %w", err)
	}
	return seq.LastNumber, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*database.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var order database.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return &order, nil
}

// PublicStatus is what a customer may see of an order.
type PublicStatus struct {
	OrderNumber string               `json:"order_number"`
	OrderDate   string               `json:"order_date"`
	Status      database.OrderStatus `json:"status"`
}

// Status returns the public view of one order.
func (s *Service) Status(ctx context.Context, id string) (*PublicStatus, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PublicStatus{OrderNumber: order.OrderNumber, OrderDate: order.OrderDate, Status: order.Status}, nil
}

// Queue returns today's open orders by number.
func (s *Service) Queue(ctx context.Context) ([]PublicStatus, error) {
	today := s.calendar.Today(ctx)
	open := []string{
		string(database.StatusPending),
		string(database.StatusPreparing),
		string(database.StatusReady),
	}

	queue := []PublicStatus{}
	err := s.db.WithContext(ctx).Model(&database.Order{}).
		Select("order_number", "order_date", "status").
		Where("order_date = ? AND status IN ?", today, open).
		Order("order_number ASC").
		Find(&queue).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order queue: %w", err)
	}
	return queue, nil
}

// List returns orders oldest first.
func (s *Service) List(ctx context.Context, f Filter) ([]database.Order, error) {
	q := s.db.WithContext(ctx).Order("order_time ASC, order_date ASC, order_number ASC")
	if !f.IncludeServed {
		q = q.Where("status <> ?", database.StatusServed)
	}
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			names[i] = string(st)
		}
		q = q.Where("status IN ?", names)
	}

	orders := []database.Order{}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Update writes the supplied fields. Moving to served re-reads the stored
// total and adds it to today's sales in the same transaction.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*database.Order, error) {
	if p.empty() {
		return nil, ErrNoFields
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if p.Items != nil {
		if err := validateItems(*p.Items); err != nil {
			return nil, err
		}
	}
	if p.Total != nil && p.Total.IsNegative() {
		return nil, ErrInvalidTotal
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	serving := p.Status != nil && *p.Status == database.StatusServed
	today := s.calendar.Today(ctx)
	now := time.Now()

	columns := []string{"updated_time"}
	values := database.Order{UpdatedTime: &now}
	if p.Items != nil {
		columns = append(columns, "items")
		values.Items = *p.Items
	}
	if p.Total != nil {
		columns = append(columns, "total")
		values.Total = *p.Total
	}
	if p.Status != nil {
		columns = append(columns, "status")
		values.Status = *p.Status
	}
	if serving {
		columns = append(columns, "served_date")
		values.ServedDate = &today
	}

	var updated database.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Order{}).Where("id = ?", id).Select(columns).Updates(&values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("id = ?", id).Take(&updated).Error; err != nil {
			return err
		}
		if serving {
			return s.sales.RecordServedOrder(tx, today, updated.Total)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update order %s: %w", id, err)
	}

	eventType := events.OrderUpdated
	if serving {
		eventType = events.OrderServed
	}
	s.publish(ctx, eventType, &updated)
	return &updated, nil
}

// Delete removes an order whatever its status. Daily sales are left as they are.
func (s *Service) Delete(ctx context.Context, id string) (*database.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Order{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to delete order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	s.publish(ctx, events.OrderDeleted, order)
	return order, nil
}

func (s *Service) publish(ctx context.Context, eventType string, o *database.Order) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Total:       o.Total,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", o.ID).Str("type", eventType).Msg("Failed to publish order event")
	}
}
