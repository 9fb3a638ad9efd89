package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/internal/cart"
	"github.com/jemi-ng/pickup-backend/internal/checkout"
	"github.com/jemi-ng/pickup-backend/internal/products"
	"github.com/jemi-ng/pickup-backend/internal/users"
	"github.com/jemi-ng/pickup-backend/pkg/config"
	dbpkg "github.com/jemi-ng/pickup-backend/pkg/db"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
	"github.com/jemi-ng/pickup-backend/pkg/logger"
	"github.com/jemi-ng/pickup-backend/pkg/outbox"
	"github.com/jemi-ng/pickup-backend/pkg/outbox/payloads"
	"github.com/jemi-ng/pickup-backend/pkg/pagination"
)

const (
	notePlaced          = "Order placed successfully"
	noteAwaitingPayment = "Order created, awaiting payment"
	noteCancelled       = "Order cancelled by customer"

	orderNumberSavepoint = "order_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type snapshotBuilder interface {
	Build(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*checkout.Snapshot, error)
}

type stockLedger interface {
	Deduct(ctx context.Context, tx *gorm.DB, moves []products.StockMove) error
	Restore(ctx context.Context, tx *gorm.DB, moves []products.StockMove) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives an order from placement to pickup.
type Service interface {
	CreateDirect(ctx context.Context, input CreateDirectInput) (*models.Order, error)
	CreatePendingForGateway(ctx context.Context, input CreatePendingInput) (*PendingCheckout, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	AdvanceStatus(ctx context.Context, input AdvanceStatusInput) (*models.Order, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	Track(ctx context.Context, userID, orderID uuid.UUID) (*Tracking, error)
}

// Settings are the checkout knobs the lifecycle needs.
type Settings struct {
	DeliveryFee         decimal.Decimal
	OrderNumberAttempts int
	DirectMethods       []enums.PaymentMethod
}

// SettingsFromConfig validates the configured direct payment methods.
func SettingsFromConfig(cfg config.CheckoutConfig) (Settings, error) {
	settings := Settings{
		DeliveryFee:         cfg.DeliveryFee(),
		OrderNumberAttempts: cfg.OrderNumberAttempts,
	}
	for _, raw := range cfg.DirectMethods {
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(raw))
		if err != nil {
			return Settings{}, err
		}
		if method.IsGateway() {
			return Settings{}, fmt.Errorf("payment method %q requires the gateway flow", method)
		}
		settings.DirectMethods = append(settings.DirectMethods, method)
	}
	return settings, nil
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Tx        txRunner
	Orders    Repository
	Users     users.Repository
	Carts     cart.Repository
	Snapshots snapshotBuilder
	Ledger    stockLedger
	Outbox    outboxPublisher
	Codes     CodeGenerator
	Logger    *logger.Logger
	Settings  Settings
	Clock     func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	users     users.Repository
	carts     cart.Repository
	snapshots snapshotBuilder
	ledger    stockLedger
	outbox    outboxPublisher
	codes     CodeGenerator
	logg      *logger.Logger
	settings  Settings
	now       func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Snapshots == nil {
		return nil, fmt.Errorf("snapshot builder required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Codes == nil {
		return nil, fmt.Errorf("code generator required")
	}
	if deps.Settings.OrderNumberAttempts < 1 {
		deps.Settings.OrderNumberAttempts = 1
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &service{
		tx:        deps.Tx,
		repo:      deps.Orders,
		users:     deps.Users,
		carts:     deps.Carts,
		snapshots: deps.Snapshots,
		ledger:    deps.Ledger,
		outbox:    deps.Outbox,
		codes:     deps.Codes,
		logg:      deps.Logger,
		settings:  deps.Settings,
		now:       deps.Clock,
	}, nil
}

// CreateDirect places a pay-on-pickup order: stock leaves the shelf and the
// cart is emptied in the same transaction that records the order.
func (s *service) CreateDirect(ctx context.Context, input CreateDirectInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !s.allowsDirect(input.PaymentMethod) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Payment method '%s' is not available for direct orders", input.PaymentMethod))
	}
	location, err := pickupLocation(input.PickupLocation)
	if err != nil {
		return nil, err
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.loadUser(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		snapshot, err := s.snapshots.Build(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		order := s.newOrder(user, user.Name, snapshot, input.PaymentMethod, location, input.Note)
		if err := s.persist(ctx, tx, order, snapshot, notePlaced); err != nil {
			return err
		}
		if err := s.ledger.Deduct(ctx, tx, snapshot.StockMoves()); err != nil {
			return err
		}
		if _, err := s.carts.WithTx(tx).Clear(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := s.emitCreated(ctx, tx, order, true); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, created, "direct order placed")
	return created, nil
}

// CreatePendingForGateway records the order before the customer is sent to
// the payment page. Stock and cart stay untouched until payment is confirmed.
func (s *service) CreatePendingForGateway(ctx context.Context, input CreatePendingInput) (*PendingCheckout, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	location, err := pickupLocation(input.PickupLocation)
	if err != nil {
		return nil, err
	}

	var result *PendingCheckout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.loadUser(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		if !user.ProfileCompleted {
			return pkgerrors.New(pkgerrors.CodeValidation, "Complete your profile before checkout")
		}
		snapshot, err := s.snapshots.Build(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		order := s.newOrder(user, user.DisplayName(), snapshot, enums.PaymentMethodPaystack, location, input.Note)
		if err := s.persist(ctx, tx, order, snapshot, noteAwaitingPayment); err != nil {
			return err
		}
		if err := s.emitCreated(ctx, tx, order, false); err != nil {
			return err
		}
		result = &PendingCheckout{Order: order, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, result.Order, "gateway order awaiting payment")
	return result, nil
}

// Cancel lets the customer withdraw an order before preparation starts.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockByID(ctx, orderID, &userID)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Cannot cancel order with status '%s'", order.Status)).
				WithDetails(map[string]any{"status": order.Status})
		}
		note := noteCancelled
		if err := s.cancelLocked(ctx, tx, order, &note, &outbox.ActorRef{UserID: userID, Role: enums.RoleCustomer.String()}); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, cancelled, "order cancelled")
	return cancelled, nil
}

// AdvanceStatus is the administrative move along the order graph. Only legal
// successors of the current status are accepted.
func (s *service) AdvanceStatus(ctx context.Context, input AdvanceStatusInput) (*models.Order, error) {
	next, err := enums.ParseOrderStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("Unknown order status '%s'", input.Status))
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, input.OrderID, nil)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Cannot move order from '%s' to '%s'", order.Status, next)).
				WithDetails(map[string]any{"from": order.Status, "to": next})
		}
		if next == enums.OrderStatusConfirmed && order.PaymentMethod.IsGateway() && order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order is awaiting online payment")
		}

		var actor *outbox.ActorRef
		if input.ActorID != nil {
			actor = &outbox.ActorRef{UserID: *input.ActorID, Role: enums.RoleAdmin.String()}
		}
		if next == enums.OrderStatusCancelled {
			if err := s.cancelLocked(ctx, tx, order, input.Note, actor); err != nil {
				return err
			}
			updated = order
			return nil
		}

		from := order.Status
		now := s.now().UTC()
		updates := map[string]any{}
		if next == enums.OrderStatusCompleted {
			updates["completed_at"] = now
			order.CompletedAt = &now
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, from, next, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		order.Status = next
		if err := s.appendTimeline(ctx, tx, order, next, input.Note); err != nil {
			return err
		}
		payload := payloads.OrderStatusChangedEvent{OrderID: order.ID, OrderNumber: order.OrderNumber, From: from, To: next}
		if input.Note != nil {
			payload.Note = *input.Note
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data:          payload,
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, updated, "order status advanced")
	return updated, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindDetail(ctx, orderID, &userID)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Unknown order status '%s'", *filters.Status))
	}
	rows, total, err := s.repo.ListForUser(ctx, userID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	if rows == nil {
		rows = []models.Order{}
	}
	return &OrderList{Orders: rows, Pagination: pagination.NewMeta(params, total)}, nil
}

func (s *service) Track(ctx context.Context, userID, orderID uuid.UUID) (*Tracking, error) {
	order, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	timeline := trackingEntries(order.Timeline)
	if timeline == nil {
		timeline = []TrackingEntry{}
	}
	return &Tracking{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		PickupLocation: order.PickupLocation,
		PickupCode:     order.PickupCode,
		Timeline:       timeline,
	}, nil
}

// cancelLocked cancels an order already locked by the caller. Stock goes back
// only when this order actually took it: direct orders at placement, gateway
// orders once paid.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, order *models.Order, note *string, actor *outbox.ActorRef) error {
	repo := s.repo.WithTx(tx)
	if StockDeducted(order) {
		items, err := repo.FindLineItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}
		if err := s.ledger.Restore(ctx, tx, StockMoves(items)); err != nil {
			return err
		}
	}

	ok, err := repo.TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}
	order.Status = enums.OrderStatusCancelled
	if err := s.appendTimeline(ctx, tx, order, enums.OrderStatusCancelled, note); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCanceledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CanceledAt:  s.now().UTC(),
		},
	})
}

func (s *service) newOrder(user *models.User, customerName string, snapshot *checkout.Snapshot, method enums.PaymentMethod, location string, note *string) *models.Order {
	userID := user.ID
	return &models.Order{
		UserID:         &userID,
		CustomerName:   customerName,
		CustomerPhone:  user.PhoneNumber(),
		CustomerEmail:  user.Email,
		Subtotal:       snapshot.Subtotal,
		DeliveryFee:    s.settings.DeliveryFee,
		Total:          snapshot.Subtotal.Add(s.settings.DeliveryFee),
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusPending,
		PaymentMethod:  method,
		PickupLocation: location,
		PickupCode:     s.codes.PickupCode(),
		CustomerNote:   trimmedNote(note),
	}
}

// persist writes the order, its frozen lines and the opening timeline entry.
// Order numbers are random, so a collision is retried with a fresh number
// inside a savepoint to keep the surrounding transaction usable.
func (s *service) persist(ctx context.Context, tx *gorm.DB, order *models.Order, snapshot *checkout.Snapshot, note string) error {
	repo := s.repo.WithTx(tx)
	for attempt := 1; ; attempt++ {
		order.ID = uuid.Nil
		order.OrderNumber = s.codes.OrderNumber(s.now())
		if err := tx.SavePoint(orderNumberSavepoint).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create savepoint")
		}
		err := repo.CreateOrder(ctx, order)
		if err == nil {
			break
		}
		if !dbpkg.IsUniqueViolation(err, "order_number") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if attempt >= s.settings.OrderNumberAttempts {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique order number")
		}
		if rbErr := tx.RollbackTo(orderNumberSavepoint).Error; rbErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rbErr, "rollback savepoint")
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"order_number": order.OrderNumber, "attempt": attempt})
			s.logg.Warn(logCtx, "order number collision, regenerating")
		}
	}

	items := make([]models.OrderLineItem, 0, len(snapshot.Lines))
	for i, line := range snapshot.Lines {
		productID := line.ProductID
		items = append(items, models.OrderLineItem{
			OrderID:      order.ID,
			ProductID:    &productID,
			ProductName:  line.ProductName,
			ProductImage: line.ProductImage,
			UnitPrice:    line.UnitPrice,
			Quantity:     line.Quantity,
			TotalPrice:   line.LineTotal,
			Position:     i,
		})
	}
	if err := repo.CreateLineItems(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
	}
	order.Items = items
	return s.appendTimeline(ctx, tx, order, enums.OrderStatusPending, &note)
}

func (s *service) appendTimeline(ctx context.Context, tx *gorm.DB, order *models.Order, status enums.OrderStatus, note *string) error {
	entry := models.OrderTimelineEntry{OrderID: order.ID, Status: status, Note: trimmedNote(note)}
	if err := s.repo.WithTx(tx).AppendTimeline(ctx, &entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline")
	}
	order.Timeline = append(order.Timeline, entry)
	return nil
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, order *models.Order, stockDeducted bool) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: *order.UserID, Role: enums.RoleCustomer.String()},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			Total:         order.Total.StringFixed(2),
			StockDeducted: stockDeducted,
		},
	})
}

func (s *service) loadUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.WithTx(tx).FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return user, nil
}

func (s *service) allowsDirect(method enums.PaymentMethod) bool {
	if method.IsGateway() {
		return false
	}
	for _, allowed := range s.settings.DirectMethods {
		if allowed == method {
			return true
		}
	}
	return false
}

func (s *service) logInfo(ctx context.Context, order *models.Order, msg string) {
	if s.logg == nil || order == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_number":   order.OrderNumber,
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
	})
	s.logg.Info(logCtx, msg)
}

// StockDeducted reports whether the order's lines are currently out of stock
// on its behalf.
func StockDeducted(order *models.Order) bool {
	if order.Status == enums.OrderStatusCancelled {
		return false
	}
	return !order.PaymentMethod.IsGateway() || order.PaymentStatus == enums.PaymentStatusPaid
}

// StockMoves converts frozen order lines back into ledger movements.
func StockMoves(items []models.OrderLineItem) []products.StockMove {
	moves := make([]products.StockMove, 0, len(items))
	for _, item := range items {
		moves = append(moves, products.StockMove{ProductID: item.ProductID, ProductName: item.ProductName, Quantity: item.Quantity})
	}
	return moves
}

func pickupLocation(raw string) (string, error) {
	location := strings.TrimSpace(raw)
	if location == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "pickup location required")
	}
	return location, nil
}

func trimmedNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load record")
}
