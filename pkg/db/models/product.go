package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog listing; stock_quantity and in_stock move together.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	InStock       bool            `gorm:"column:in_stock;not null"`
	IsActive      bool            `gorm:"column:is_active;not null"`
	ImageURL      *string         `gorm:"column:image_url"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	p.InStock = p.StockQuantity > 0
	return nil
}
