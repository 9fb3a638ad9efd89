package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/pkg/db/models"
)

// Repository reads and clears a user's cart. Carts are edited by the
// storefront service; order flows only ever read them or empty them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Lines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Clear(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Lines returns the cart's items in the order they were added.
func (r *repository) Lines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Order("cart_items.created_at ASC").
		Order("cart_items.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Clear empties the cart but keeps the cart row itself.
func (r *repository) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	cartIDs := r.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	res := r.db.WithContext(ctx).
		Where("cart_id IN (?)", cartIDs).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
