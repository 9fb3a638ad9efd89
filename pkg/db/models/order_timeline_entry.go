package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/pkg/enums"
)

// OrderTimelineEntry is an append-only audit record of an order's progress.
type OrderTimelineEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;size:32;not null"`
	Note      *string           `gorm:"column:note"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderTimelineEntry) TableName() string {
	return "order_timeline"
}

func (e *OrderTimelineEntry) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
