package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/api/middleware"
	"github.com/jemi-ng/pickup-backend/api/responses"
	"github.com/jemi-ng/pickup-backend/api/validators"
	internalpayments "github.com/jemi-ng/pickup-backend/internal/payments"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
)

// Service is the online checkout surface.
type Service interface {
	Initialize(ctx context.Context, input internalpayments.InitializeInput) (*internalpayments.InitializeResult, error)
	Verify(ctx context.Context, userID uuid.UUID, reference string) (*internalpayments.VerifyResult, error)
}

type initializeRequest struct {
	PickupLocation string  `json:"pickup_location" validate:"required,notblank,max=200"`
	Note           *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type verifyRequest struct {
	Reference string `json:"reference" validate:"required,notblank,max=64"`
}

// Initialize creates a pending order and returns the Paystack payment page.
func Initialize(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initializeRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initialize(r.Context(), internalpayments.InitializeInput{
			UserID:         userID,
			PickupLocation: validators.SanitizeString(payload.PickupLocation, 200),
			Note:           validators.SanitizeOptional(payload.Note, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Verify confirms the payment once the customer returns from Paystack.
func Verify(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Verify(r.Context(), userID, payload.Reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}
