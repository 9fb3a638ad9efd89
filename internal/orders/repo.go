package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/jemi-ng/pickup-backend/pkg/db"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	"github.com/jemi-ng/pickup-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error
	FindDetail(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*models.Order, error)
	LockByNumber(ctx context.Context, orderNumber string, userID *uuid.UUID) (*models.Order, error)
	FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	FindTimeline(ctx context.Context, orderID uuid.UUID) ([]models.OrderTimelineEntry, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, int64, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, reference string, paidAt time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order row only; lines and timeline are written separately.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindDetail loads an order with its lines and timeline. A non-nil userID
// scopes the lookup to that customer's orders.
func (r *repository) FindDetail(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ?", orderID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID loads the order row under FOR UPDATE so concurrent state changes serialise.
func (r *repository) LockByID(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", orderID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LockByNumber(ctx context.Context, orderNumber string, userID *uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("order_number = ?", orderNumber)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindTimeline(ctx context.Context, orderID uuid.UUID) ([]models.OrderTimelineEntry, error) {
	var entries []models.OrderTimelineEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListForUser returns one page newest first plus the unpaged total for the
// same filters.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Order, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if filters.Status != nil {
		base = base.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []models.Order
	err := base.Session(&gorm.Session{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Order("id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// TransitionStatus moves the order only if it is still in the expected
// status; false means another writer got there first.
func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid flips a pending gateway payment to paid and confirms the order in
// one conditional statement. It reports false when the payment was already
// settled or the order is not a gateway order.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, reference string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_method = ? AND payment_status = ? AND status <> ?",
			orderID, enums.PaymentMethodPaystack, enums.PaymentStatusPending, enums.OrderStatusCancelled).
		Updates(map[string]any{
			"payment_status":    enums.PaymentStatusPaid,
			"status":            enums.OrderStatusConfirmed,
			"payment_reference": reference,
			"paid_at":           paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
