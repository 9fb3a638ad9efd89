package orders

import (
	"math"
	"net/http"

	"github.com/jemi-ng/pickup-backend/api/middleware"
	"github.com/jemi-ng/pickup-backend/api/responses"
	"github.com/jemi-ng/pickup-backend/api/validators"
	internalorders "github.com/jemi-ng/pickup-backend/internal/orders"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/pagination"
)

const (
	maxPickupLocation = 200
	maxNote           = 500
	orderNotFound     = "Order not found"
)

type createOrderRequest struct {
	PaymentMethod  string  `json:"payment_method" validate:"required,oneof=cash_on_pickup transfer_on_pickup"`
	PickupLocation string  `json:"pickup_location" validate:"required,notblank,max=200"`
	Note           *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// Create places a pay-on-pickup order from the caller's cart.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateDirect(r.Context(), internalorders.CreateDirectInput{
			UserID:         userID,
			PaymentMethod:  enums.PaymentMethod(payload.PaymentMethod),
			PickupLocation: validators.SanitizeString(payload.PickupLocation, maxPickupLocation),
			Note:           validators.SanitizeOptional(payload.Note, maxNote),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.NewOrderView(order))
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, math.MaxInt32)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Page: page, Limit: limit}
		var filters internalorders.ListFilters
		if status := validators.ParseQueryString(r, "status"); status != nil {
			parsed := enums.OrderStatus(*status)
			filters.Status = &parsed
		}

		list, err := svc.List(r.Context(), userID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderListView(list))
	}
}

// Detail returns one of the caller's orders with items and timeline.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", orderNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(order))
	}
}

// Track returns the status timeline of one of the caller's orders.
func Track(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", orderNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tracking, err := svc.Track(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tracking)
	}
}

// Cancel cancels one of the caller's orders while it is still pending or confirmed.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", orderNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(order))
	}
}
