package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/pkg/enums"
)

// OrderCreatedEvent announces a newly placed order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Total         string              `json:"total"`
	StockDeducted bool                `json:"stock_deducted"`
}

// OrderPaidEvent is emitted once per order when the gateway payment is reconciled.
type OrderPaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Reference   string    `json:"reference"`
	Source      string    `json:"source"`
	AmountMinor int64     `json:"amount_minor"`
	PaidAt      time.Time `json:"paid_at"`
}

// OrderCanceledEvent is emitted when a customer cancels before preparation starts.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CanceledAt  time.Time `json:"canceled_at"`
}

// OrderStatusChangedEvent reports an administrative status move.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Note        string            `json:"note,omitempty"`
}
