package paystackwebhook

import (
	"context"
	"strings"

	"github.com/jemi-ng/pickup-backend/internal/payments"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/metrics"
	"github.com/jemi-ng/pickup-backend/pkg/paystack"
)

// GuardScope namespaces the delivery keys in redis.
const GuardScope = "paystack"

type confirmer interface {
	ConfirmPaid(ctx context.Context, c payments.Confirmation) (*payments.Outcome, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, deliveryKey string) (bool, error)
	Release(ctx context.Context, deliveryKey string) error
}

type ServiceParams struct {
	Reconciler      confirmer
	Guard           deliveryGuard
	SecretKey       string
	ReferencePrefix string
	Metrics         *metrics.PaymentMetrics
	Logger          *logger.Logger
}

// Service turns signed Paystack callbacks into payment confirmations.
type Service struct {
	reconciler confirmer
	guard      deliveryGuard
	secret     string
	prefix     string
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if strings.TrimSpace(params.SecretKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "paystack secret key required")
	}
	if strings.TrimSpace(params.ReferencePrefix) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reference prefix required")
	}
	return &Service{
		reconciler: params.Reconciler,
		guard:      params.Guard,
		secret:     params.SecretKey,
		prefix:     params.ReferencePrefix,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// Handle verifies and applies one webhook delivery. A nil return means the
// delivery should be acknowledged; that includes events that cannot be acted
// on and were logged for manual review. Only transient failures return an
// error so the gateway retries.
func (s *Service) Handle(ctx context.Context, body []byte, signature string) error {
	if !paystack.VerifySignature(body, signature, s.secret) {
		s.metrics.IncWebhook("unknown", metrics.ResultRejected)
		s.warn(ctx, "webhook signature rejected", nil)
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid webhook signature")
	}

	event, err := paystack.ParseEvent(body)
	if err != nil {
		s.metrics.IncWebhook("unknown", metrics.ResultRejected)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid webhook payload")
	}
	if !event.ConfirmsPayment() {
		s.metrics.IncWebhook(event.Event, metrics.ResultIgnored)
		return nil
	}

	ctx = s.withReference(ctx, event.Data.Reference)
	orderNumber, ok := paystack.OrderNumber(s.prefix, event.Data.Reference)
	if !ok {
		s.metrics.IncWebhook(event.Event, metrics.ResultIgnored)
		s.warn(ctx, "webhook reference does not belong to this store", nil)
		return nil
	}

	key := deliveryKey(event)
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, key)
		if err != nil {
			s.warn(ctx, "webhook guard unavailable, continuing", err)
		} else if seen {
			s.metrics.IncWebhook(event.Event, metrics.ResultDuplicate)
			return nil
		}
	}

	_, err = s.reconciler.ConfirmPaid(ctx, payments.Confirmation{
		OrderNumber: orderNumber,
		Reference:   event.Data.Reference,
		AmountMinor: event.Data.Amount,
		Source:      payments.SourceWebhook,
	})
	switch {
	case err == nil:
		s.metrics.IncWebhook(event.Event, metrics.ResultOK)
		return nil
	case acknowledged(err):
		s.metrics.IncWebhook(event.Event, metrics.ResultRejected)
		s.warn(ctx, "webhook acknowledged without confirming payment", err)
		return nil
	default:
		s.metrics.IncWebhook(event.Event, metrics.ResultError)
		if s.guard != nil {
			if releaseErr := s.guard.Release(ctx, key); releaseErr != nil {
				s.warn(ctx, "release webhook guard", releaseErr)
			}
		}
		return err
	}
}

// acknowledged lists outcomes a retry cannot fix.
func acknowledged(err error) bool {
	for _, code := range []pkgerrors.Code{
		pkgerrors.CodeNotFound,
		pkgerrors.CodeAmountMismatch,
		pkgerrors.CodeInsufficientStock,
		pkgerrors.CodeStateConflict,
	} {
		if pkgerrors.IsCode(err, code) {
			return true
		}
	}
	return false
}

func (s *Service) withReference(ctx context.Context, reference string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithReference(ctx, reference)
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"error": err.Error()})
	}
	s.logg.Warn(ctx, msg)
}
