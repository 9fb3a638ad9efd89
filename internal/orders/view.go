package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	"github.com/jemi-ng/pickup-backend/pkg/pagination"
)

// LineItemView is a frozen order line as returned to clients.
type LineItemView struct {
	ProductID    *uuid.UUID      `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name"`
	ProductImage *string         `json:"product_image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

// OrderView is the client representation of an order.
type OrderView struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	CustomerName     string              `json:"customer_name"`
	CustomerPhone    string              `json:"customer_phone,omitempty"`
	CustomerEmail    string              `json:"customer_email"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	DeliveryFee      decimal.Decimal     `json:"delivery_fee"`
	Total            decimal.Decimal     `json:"total"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	PaymentReference *string             `json:"payment_reference,omitempty"`
	PickupLocation   string              `json:"pickup_location"`
	PickupCode       string              `json:"pickup_code"`
	CustomerNote     *string             `json:"customer_note,omitempty"`
	SellerNote       *string             `json:"seller_note,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	Items            []LineItemView      `json:"items"`
	Timeline         []TrackingEntry     `json:"timeline,omitempty"`
}

// OrderListView is one page of orders as returned to clients.
type OrderListView struct {
	Orders     []OrderView     `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

func NewOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		CustomerName:     order.CustomerName,
		CustomerPhone:    order.CustomerPhone,
		CustomerEmail:    order.CustomerEmail,
		Subtotal:         order.Subtotal,
		DeliveryFee:      order.DeliveryFee,
		Total:            order.Total,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		PickupLocation:   order.PickupLocation,
		PickupCode:       order.PickupCode,
		CustomerNote:     order.CustomerNote,
		SellerNote:       order.SellerNote,
		PaidAt:           order.PaidAt,
		CompletedAt:      order.CompletedAt,
		CreatedAt:        order.CreatedAt,
		Items:            make([]LineItemView, 0, len(order.Items)),
		Timeline:         trackingEntries(order.Timeline),
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, LineItemView{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			TotalPrice:   item.TotalPrice,
		})
	}
	return view
}

func NewOrderListView(list *OrderList) OrderListView {
	out := OrderListView{Orders: make([]OrderView, 0, len(list.Orders)), Pagination: list.Pagination}
	for i := range list.Orders {
		out.Orders = append(out.Orders, NewOrderView(&list.Orders[i]))
	}
	return out
}

func trackingEntries(entries []models.OrderTimelineEntry) []TrackingEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]TrackingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TrackingEntry{Status: e.Status, Note: e.Note, CreatedAt: e.CreatedAt})
	}
	return out
}
