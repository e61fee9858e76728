package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string `gorm:"not null"                  json:"name"`
	Slug        string `gorm:"uniqueIndex;not null"      json:"slug"`
	Description string `json:"description"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	CategoryID  uint            `gorm:"index;not null"                    json:"category_id"`
	Category    *Category       `gorm:"constraint:OnDelete:RESTRICT"      json:"category,omitempty"`
	Name        string          `gorm:"not null"                          json:"name"`
	Slug        string          `gorm:"uniqueIndex;not null"              json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"       json:"price"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Image       string          `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index"                             json:"-"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                         json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_user_product;not null" json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_cart_user_product;not null"        json:"product_id"`
	Product   *Product  `gorm:"constraint:OnDelete:CASCADE"                       json:"product,omitempty"`
	Quantity  uint      `gorm:"not null;check:quantity > 0"                       json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Order struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"   json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"   json:"user_id"`
	Status    OrderStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Address   string          `gorm:"type:varchar(500);not null" json:"address"`
	Phone     string          `gorm:"type:varchar(20);not null"  json:"phone"`
	Items     []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt time.Time       `gorm:"index"                      json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderItem.Price is the product price at the moment the order was placed.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID   uint            `gorm:"index;not null"              json:"order_id"`
	ProductID uint            `gorm:"index;not null"              json:"product_id"`
	Product   *Product        `gorm:"constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity  uint            `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
