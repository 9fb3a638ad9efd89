package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/jemi-ng/pickup-backend/api/responses"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/paystack"
)

const maxWebhookBytes = 1 << 20

type PaystackWebhookService interface {
	Handle(ctx context.Context, body []byte, signature string) error
}

// PaystackWebhook reads the raw body so the signature is checked over the
// exact bytes Paystack signed.
func PaystackWebhook(svc PaystackWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if err := svc.Handle(ctx, payload, r.Header.Get(paystack.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteAck(w)
	}
}
