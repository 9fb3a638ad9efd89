package orders

import (
	"net/http"

	"github.com/jemi-ng/pickup-backend/api/middleware"
	"github.com/jemi-ng/pickup-backend/api/responses"
	"github.com/jemi-ng/pickup-backend/api/validators"
	internalorders "github.com/jemi-ng/pickup-backend/internal/orders"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
)

type advanceStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// AdminAdvanceStatus moves an order along the fulfilment graph.
func AdminAdvanceStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actorID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", orderNotFound)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceStatusRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AdvanceStatus(r.Context(), internalorders.AdvanceStatusInput{
			OrderID: orderID,
			Status:  payload.Status,
			Note:    validators.SanitizeOptional(payload.Note, maxNote),
			ActorID: &actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(order))
	}
}
