package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/internal/cart"
	"github.com/jemi-ng/pickup-backend/internal/orders"
	"github.com/jemi-ng/pickup-backend/internal/products"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/metrics"
	"github.com/jemi-ng/pickup-backend/pkg/money"
	"github.com/jemi-ng/pickup-backend/pkg/outbox"
	"github.com/jemi-ng/pickup-backend/pkg/outbox/payloads"
)

// Source names the path that reported the payment.
type Source string

const (
	SourceVerify  Source = "verify"
	SourceWebhook Source = "webhook"
)

func (s Source) timelineNote(reference string) string {
	if s == SourceWebhook {
		return fmt.Sprintf("Payment confirmed via webhook (ref: %s)", reference)
	}
	return fmt.Sprintf("Payment confirmed via Paystack (ref: %s)", reference)
}

// Confirmation is a gateway-reported settlement for one order.
type Confirmation struct {
	OrderNumber string
	Reference   string
	AmountMinor int64
	Source      Source
	// UserID scopes the lookup to the paying customer; webhooks leave it nil.
	UserID *uuid.UUID
}

// Outcome is the order state after reconciliation. AlreadyPaid is set when
// an earlier confirmation won and nothing was changed.
type Outcome struct {
	Order       *models.Order
	AlreadyPaid bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Deduct(ctx context.Context, tx *gorm.DB, moves []products.StockMove) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Reconciler is the single routine that marks a gateway order paid, whichever
// path reports the payment first.
type Reconciler struct {
	tx      txRunner
	orders  orders.Repository
	ledger  stockLedger
	carts   cart.Repository
	outbox  outboxPublisher
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

type ReconcilerParams struct {
	Tx      txRunner
	Orders  orders.Repository
	Ledger  stockLedger
	Carts   cart.Repository
	Outbox  outboxPublisher
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	return &Reconciler{
		tx:      params.Tx,
		orders:  params.Orders,
		ledger:  params.Ledger,
		carts:   params.Carts,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     params.Clock,
	}, nil
}

// ConfirmPaid settles the order exactly once. The order row is locked for
// the whole transaction and the paid flip is conditional on the payment
// still being pending, so racing callers deduct stock once and the loser
// sees the already-paid order.
func (r *Reconciler) ConfirmPaid(ctx context.Context, c Confirmation) (*Outcome, error) {
	var outcome *Outcome
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.orders.WithTx(tx)
		order, err := repo.LockByNumber(ctx, c.OrderNumber, c.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found").
				WithDetails(map[string]any{"order_number": c.OrderNumber})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentStatus == enums.PaymentStatusPaid {
			outcome = &Outcome{Order: order, AlreadyPaid: true}
			return nil
		}
		if !order.PaymentMethod.IsGateway() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order is not paid through the gateway").
				WithDetails(map[string]any{"order_number": order.OrderNumber, "payment_method": order.PaymentMethod})
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order was cancelled before payment was confirmed").
				WithDetails(map[string]any{"order_number": order.OrderNumber})
		}
		expected := money.ToMinor(order.Total)
		if c.AmountMinor != expected {
			return pkgerrors.AmountMismatch(c.Reference, expected, c.AmountMinor)
		}

		paidAt := r.now().UTC()
		ok, err := repo.MarkPaid(ctx, order.ID, c.Reference, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !ok {
			fresh, err := repo.LockByID(ctx, order.ID, nil)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			outcome = &Outcome{Order: fresh, AlreadyPaid: true}
			return nil
		}

		items, err := repo.FindLineItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}
		if err := r.ledger.Deduct(ctx, tx, orders.StockMoves(items)); err != nil {
			return err
		}

		note := c.Source.timelineNote(c.Reference)
		if err := repo.AppendTimeline(ctx, &models.OrderTimelineEntry{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Note: &note}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline")
		}
		if order.UserID != nil {
			if _, err := r.carts.WithTx(tx).Clear(ctx, *order.UserID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Reference:   c.Reference,
				Source:      string(c.Source),
				AmountMinor: c.AmountMinor,
				PaidAt:      paidAt,
			},
		}); err != nil {
			return err
		}

		reference := c.Reference
		order.PaymentStatus = enums.PaymentStatusPaid
		order.Status = enums.OrderStatusConfirmed
		order.PaymentReference = &reference
		order.PaidAt = &paidAt
		order.Items = items
		outcome = &Outcome{Order: order}
		return nil
	})

	r.record(ctx, c, outcome, err)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (r *Reconciler) record(ctx context.Context, c Confirmation, outcome *Outcome, err error) {
	result := metrics.ResultConfirmed
	switch {
	case err == nil && outcome.AlreadyPaid:
		result = metrics.ResultAlreadyPaid
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch):
		result = metrics.ResultMismatch
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		result = metrics.ResultNotFound
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		result = metrics.ResultRejected
	default:
		result = metrics.ResultError
	}
	r.metrics.IncReconciliation(string(c.Source), result)

	if r.logg == nil {
		return
	}
	logCtx := r.logg.WithReference(ctx, c.Reference)
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"order_number": c.OrderNumber,
		"source":       string(c.Source),
		"amount_minor": c.AmountMinor,
		"result":       result,
	})
	if outcome != nil && outcome.Order != nil {
		logCtx = r.logg.WithOrderID(logCtx, outcome.Order.ID.String())
	}
	switch result {
	case metrics.ResultConfirmed:
		r.logg.Info(logCtx, "payment confirmed")
	case metrics.ResultAlreadyPaid:
		r.logg.Info(logCtx, "payment already confirmed")
	case metrics.ResultError:
		r.logg.Error(logCtx, "payment reconciliation failed", err)
	default:
		r.logg.Warn(logCtx, "payment needs manual review")
	}
}
