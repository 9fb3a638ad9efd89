package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLineItem freezes the product name, image and price at order time.
type OrderLineItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ProductName  string          `gorm:"column:product_name;not null"`
	ProductImage *string         `gorm:"column:product_image"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	TotalPrice   decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	Position     int             `gorm:"column:position;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
