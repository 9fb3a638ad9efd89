package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	"github.com/jemi-ng/pickup-backend/pkg/pagination"
)

// CreateDirectInput places a pay-on-pickup order from the caller's cart.
type CreateDirectInput struct {
	UserID         uuid.UUID
	PaymentMethod  enums.PaymentMethod
	PickupLocation string
	Note           *string
}

// CreatePendingInput places a gateway order that waits for payment.
type CreatePendingInput struct {
	UserID         uuid.UUID
	PickupLocation string
	Note           *string
}

// PendingCheckout carries what the gateway initialize call needs.
type PendingCheckout struct {
	Order *models.Order
	User  *models.User
}

// AdvanceStatusInput is an administrative status move; Status is raw input.
type AdvanceStatusInput struct {
	OrderID uuid.UUID
	Status  string
	Note    *string
	ActorID *uuid.UUID
}

// ListFilters narrows the customer order list.
type ListFilters struct {
	Status *enums.OrderStatus
}

// OrderList is one page of a customer's orders.
type OrderList struct {
	Orders     []models.Order  `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

// TrackingEntry is one step of the order timeline as shown to customers.
type TrackingEntry struct {
	Status    enums.OrderStatus `json:"status"`
	Note      *string           `json:"note,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Tracking summarises where an order is and how it got there.
type Tracking struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	PickupLocation string              `json:"pickup_location"`
	PickupCode     string              `json:"pickup_code"`
	Timeline       []TrackingEntry     `json:"timeline"`
}
