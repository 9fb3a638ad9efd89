package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/pkg/enums"
)

// Order is the immutable snapshot of a checkout plus its mutable lifecycle state.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;size:20;not null;uniqueIndex:orders_order_number_key"`
	UserID           *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	CustomerName     string              `gorm:"column:customer_name;not null"`
	CustomerPhone    string              `gorm:"column:customer_phone;not null;default:''"`
	CustomerEmail    string              `gorm:"column:customer_email;not null"`
	Subtotal         decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee      decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Status           enums.OrderStatus   `gorm:"column:status;size:32;not null;index"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;size:32;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;size:32;not null"`
	PaymentReference *string             `gorm:"column:payment_reference;size:64"`
	PickupLocation   string              `gorm:"column:pickup_location;not null"`
	PickupCode       string              `gorm:"column:pickup_code;size:6;not null"`
	CustomerNote     *string             `gorm:"column:customer_note"`
	SellerNote       *string             `gorm:"column:seller_note"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items    []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Timeline []OrderTimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
