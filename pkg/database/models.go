package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Money is rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every accepted status value.
var OrderStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusServed, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Defaults applied when a create request omits the field.
const (
	DefaultLowStockThreshold = 10
	DefaultMenuUnit          = "pcs"
	DefaultMaterialUnit      = "kg"
	DefaultMinStockLevel     = 5
)

// MenuItem is a dish or drink on the menu, with its stock counters
type MenuItem struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	Name              string             `gorm:"size:255;not null" json:"name"`
	Price             decimal.Decimal    `gorm:"type:decimal(10,2);not null" json:"price"`
	Category          string             `gorm:"size:100;index" json:"category"`
	IsAvailable       bool               `gorm:"not null" json:"is_available"`
	Position          *int               `json:"position"`
	StockQuantity     int                `gorm:"not null" json:"stock_quantity"`
	LowStockThreshold int                `gorm:"not null" json:"low_stock_threshold"`
	UnitType          string             `gorm:"size:50" json:"unit_type"`
	Ingredients       map[string]float64 `gorm:"serializer:json;type:text" json:"ingredients"`
	SupplierInfo      string             `gorm:"size:255" json:"supplier_info"`
	LastRestocked     *time.Time         `json:"last_restocked"`
	RawMaterials      []DishRawMaterial  `gorm:"foreignKey:DishID" json:"raw_materials,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// OrderItem is one line of an order, a snapshot of the menu item at order time
type OrderItem struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	IsAvailable bool            `json:"is_available"`
	Quantity    int             `json:"quantity"`
}

// Order is a customer order. OrderNumber is unique only within OrderDate.
type Order struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderNumber string          `gorm:"size:10;not null;index:idx_orders_day_number" json:"order_number"`
	OrderDate   string          `gorm:"size:10;not null;index:idx_orders_day_number" json:"order_date"`
	Items       []OrderItem     `gorm:"serializer:json;type:text;not null" json:"items"`
	Total       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	Status      OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	OrderTime   time.Time       `gorm:"autoCreateTime;index" json:"order_time"`
	UpdatedTime *time.Time      `json:"updated_time"`
	ServedDate  *string         `gorm:"size:10;index" json:"served_date,omitempty"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderSequence holds the last order number handed out for a business date
type OrderSequence struct {
	SeqDate    string `gorm:"size:10;primaryKey" json:"seq_date"`
	LastNumber int    `gorm:"not null" json:"last_number"`
}

// DailySale is the rolling per-day counter of served orders
type DailySale struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SaleDate     string          `gorm:"size:10;not null;uniqueIndex" json:"sale_date"`
	TotalOrders  int             `gorm:"not null" json:"total_orders"`
	TotalRevenue decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_revenue"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RawMaterial represents an ingredient kept in stock
type RawMaterial struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	UnitType      string          `gorm:"size:50;not null" json:"unit_type"` // kg, liter, pcs
	CurrentStock  decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"current_stock"`
	MinStockLevel decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"min_stock_level"`
	SupplierInfo  string          `gorm:"size:255" json:"supplier_info"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DishRawMaterial links a menu item to the raw materials one portion needs
type DishRawMaterial struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	DishID           uint            `gorm:"not null;uniqueIndex:idx_dish_raw_material" json:"dish_id"`
	RawMaterialID    uint            `gorm:"not null;uniqueIndex:idx_dish_raw_material" json:"raw_material_id"`
	RawMaterial      RawMaterial     `gorm:"foreignKey:RawMaterialID" json:"raw_material"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity_required"`
}

// Role groups users by what they may do
type Role struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	RoleName    string          `gorm:"size:50;not null;uniqueIndex" json:"role_name"`
	Permissions map[string]bool `gorm:"serializer:json;type:text" json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
}

// User is a staff account
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	RoleID       uint      `gorm:"not null" json:"role_id"`
	Role         Role      `gorm:"foreignKey:RoleID" json:"-"`
	RoleName     string    `gorm:"-" json:"role_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) AfterFind(tx *gorm.DB) error {
	if u.Role.ID != 0 {
		u.RoleName = u.Role.RoleName
	}
	return nil
}

// SystemSetting is a named configuration value editable at runtime
type SystemSetting struct {
	SettingName  string    `gorm:"size:100;primaryKey" json:"setting_name"`
	SettingValue string    `gorm:"size:255;not null" json:"setting_value"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActivityLog tracks staff actions for audit trail
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Username   string    `gorm:"size:100" json:"username"`
	Action     string    `gorm:"size:50;not null" json:"action"` // delete, reset, create, batch_update
	EntityType string    `gorm:"size:50" json:"entity_type"`
	EntityID   string    `gorm:"size:64" json:"entity_id"`
	Details    string    `gorm:"type:text" json:"details"` // JSON details
	IPAddress  string    `gorm:"size:64" json:"ip_address"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&MenuItem{},
		&Order{},
		&OrderSequence{},
		&DailySale{},
		&RawMaterial{},
		&DishRawMaterial{},
		&Role{},
		&User{},
		&SystemSetting{},
		&ActivityLog{},
	)
}
