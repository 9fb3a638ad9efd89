package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/types"
)

type exposeKey struct{}

// WithInternalErrors marks the request so unexpected errors show their real
// message. Only the dev router sets it.
func WithInternalErrors(ctx context.Context) context.Context {
	return context.WithValue(ctx, exposeKey{}, true)
}

func exposeInternal(ctx context.Context) bool {
	v, _ := ctx.Value(exposeKey{}).(bool)
	return v
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteAck answers a webhook delivery the way the gateway expects.
func WriteAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, types.Acknowledgement{Status: "success"})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())
	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: publicMessage(ctx, typed, err, meta),
		},
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// publicMessage shows domain messages verbatim. Internal failures fall back to
// the generic text unless the request opted into internal errors.
func publicMessage(ctx context.Context, typed *pkgerrors.Error, err error, meta pkgerrors.Metadata) string {
	switch typed.Code() {
	case pkgerrors.CodeInternal:
		if exposeInternal(ctx) {
			return err.Error()
		}
		return meta.PublicMessage
	case pkgerrors.CodeDependency:
		return meta.PublicMessage
	}
	if m := typed.Message(); m != "" {
		return m
	}
	return meta.PublicMessage
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
