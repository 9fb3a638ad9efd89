package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jemi-ng/pickup-backend/internal/orders"
	"github.com/jemi-ng/pickup-backend/pkg/config"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/metrics"
	"github.com/jemi-ng/pickup-backend/pkg/money"
	"github.com/jemi-ng/pickup-backend/pkg/paystack"
)

const verifiedStatus = "success"

// Gateway is the subset of the Paystack client checkout uses.
type Gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

type pendingCreator interface {
	CreatePendingForGateway(ctx context.Context, input orders.CreatePendingInput) (*orders.PendingCheckout, error)
}

type confirmer interface {
	ConfirmPaid(ctx context.Context, c Confirmation) (*Outcome, error)
}

// Settings configure how references and callbacks are built.
type Settings struct {
	ReferencePrefix string
	CallbackURL     string
}

// SettingsFromConfig joins the storefront origin with the callback path.
func SettingsFromConfig(app config.AppConfig, ps config.PaystackConfig) Settings {
	return Settings{
		ReferencePrefix: ps.ReferencePrefix,
		CallbackURL:     strings.TrimRight(app.FrontendURL, "/") + "/" + strings.TrimLeft(ps.CallbackPath, "/"),
	}
}

// InitializeInput starts an online payment for the caller's cart.
type InitializeInput struct {
	UserID         uuid.UUID
	PickupLocation string
	Note           *string
}

// InitializeResult is returned to the storefront for the redirect.
type InitializeResult struct {
	AuthorizationURL string    `json:"authorization_url"`
	AccessCode       string    `json:"access_code"`
	Reference        string    `json:"reference"`
	OrderID          uuid.UUID `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
}

// VerifyResult is the receipt shown after a successful payment.
type VerifyResult struct {
	OrderNumber    string `json:"order_number"`
	PickupCode     string `json:"pickup_code"`
	PickupLocation string `json:"pickup_location"`
	Total          string `json:"total"`
	Status         string `json:"status"`
}

type ServiceParams struct {
	Orders     pendingCreator
	Reconciler confirmer
	Gateway    Gateway
	Settings   Settings
	Metrics    *metrics.PaymentMetrics
	Logger     *logger.Logger
}

// Service runs the two customer-facing steps of online checkout.
type Service struct {
	orders     pendingCreator
	reconciler confirmer
	gateway    Gateway
	settings   Settings
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if strings.TrimSpace(params.Settings.ReferencePrefix) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reference prefix required")
	}
	return &Service{
		orders:     params.Orders,
		reconciler: params.Reconciler,
		gateway:    params.Gateway,
		settings:   params.Settings,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// Initialize commits a pending order and then asks the gateway for a payment
// page. A gateway failure leaves the pending order in place.
func (s *Service) Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	pending, err := s.orders.CreatePendingForGateway(ctx, orders.CreatePendingInput{
		UserID:         input.UserID,
		PickupLocation: input.PickupLocation,
		Note:           input.Note,
	})
	if err != nil {
		return nil, err
	}
	order := pending.Order
	reference := paystack.Reference(s.settings.ReferencePrefix, order.OrderNumber)

	result, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       pending.User.Email,
		Amount:      money.ToMinor(order.Total),
		Reference:   reference,
		CallbackURL: s.settings.CallbackURL,
		Metadata: map[string]any{
			"order_id":        order.ID.String(),
			"order_number":    order.OrderNumber,
			"customer_name":   order.CustomerName,
			"pickup_location": order.PickupLocation,
		},
	})
	if err != nil {
		s.metrics.IncGatewayCall("initialize", metrics.ResultError)
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			logCtx = s.logg.WithReference(logCtx, reference)
			s.logg.Error(logCtx, "payment initialize failed, order left pending", err)
		}
		return nil, asGatewayError(err, "Could not initialize payment")
	}
	s.metrics.IncGatewayCall("initialize", metrics.ResultOK)

	return &InitializeResult{
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Reference:        result.Reference,
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
	}, nil
}

// Verify is called when the customer returns from the payment page. The
// gateway is asked first, outside any transaction; only a verified charge
// reaches reconciliation.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	orderNumber, ok := paystack.OrderNumber(s.settings.ReferencePrefix, reference)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found").
			WithDetails(map[string]any{"reference": reference})
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		s.metrics.IncGatewayCall("verify", metrics.ResultError)
		return nil, asGatewayError(err, "Payment verification failed")
	}
	s.metrics.IncGatewayCall("verify", metrics.ResultOK)

	outcome, err := s.reconciler.ConfirmPaid(ctx, Confirmation{
		OrderNumber: orderNumber,
		Reference:   reference,
		AmountMinor: verified.AmountMinor,
		Source:      SourceVerify,
		UserID:      &userID,
	})
	if err != nil {
		return nil, err
	}

	order := outcome.Order
	if outcome.AlreadyPaid && order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Order was cancelled after payment").
			WithDetails(map[string]any{"order_number": order.OrderNumber})
	}
	return &VerifyResult{
		OrderNumber:    order.OrderNumber,
		PickupCode:     order.PickupCode,
		PickupLocation: order.PickupLocation,
		Total:          money.Format(order.Total),
		Status:         verifiedStatus,
	}, nil
}

func asGatewayError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.PaymentGateway(err, message)
}
