package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/internal/cart"
	"github.com/jemi-ng/pickup-backend/internal/products"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
)

// Line is a priced cart line at the moment of checkout.
type Line struct {
	ProductID    uuid.UUID
	ProductName  string
	ProductImage *string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineTotal    decimal.Decimal
}

// Snapshot is the validated, priced view of a cart. Building one never mutates stock.
type Snapshot struct {
	UserID   uuid.UUID
	Lines    []Line
	Subtotal decimal.Decimal
}

// StockMoves lists what confirming this snapshot takes out of stock.
func (s Snapshot) StockMoves() []products.StockMove {
	moves := make([]products.StockMove, 0, len(s.Lines))
	for _, line := range s.Lines {
		id := line.ProductID
		moves = append(moves, products.StockMove{ProductID: &id, ProductName: line.ProductName, Quantity: line.Quantity})
	}
	return moves
}

// Builder validates a user's cart against the live catalog.
type Builder struct {
	carts    cart.Repository
	products products.Repository
}

func NewBuilder(carts cart.Repository, catalog products.Repository) (*Builder, error) {
	if carts == nil {
		return nil, errors.New("cart repository required")
	}
	if catalog == nil {
		return nil, errors.New("products repository required")
	}
	return &Builder{carts: carts, products: catalog}, nil
}

// Build reads the cart through tx and prices it with current catalog prices.
func (b *Builder) Build(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*Snapshot, error) {
	items, err := b.carts.WithTx(tx).Lines(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := b.products.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	snapshot := &Snapshot{UserID: userID, Lines: make([]Line, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "A product in your cart is no longer available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		line, err := priceLine(product, item)
		if err != nil {
			return nil, err
		}
		snapshot.Lines = append(snapshot.Lines, line)
		snapshot.Subtotal = snapshot.Subtotal.Add(line.LineTotal)
	}
	return snapshot, nil
}

func priceLine(product models.Product, item models.CartItem) (Line, error) {
	if !product.IsActive {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Product '%s' is no longer available", product.Name)).
			WithDetails(map[string]any{"product_id": product.ID})
	}
	if item.Quantity < 1 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Invalid quantity for '%s'", product.Name))
	}
	if product.StockQuantity < item.Quantity {
		return Line{}, pkgerrors.InsufficientStock(product.Name, product.StockQuantity, item.Quantity)
	}
	return Line{
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductImage: product.ImageURL,
		UnitPrice:    product.Price,
		Quantity:     item.Quantity,
		LineTotal:    product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}, nil
}
