package products

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
)

// StockMove is one product quantity to take out of or put back into stock.
// A nil ProductID marks a line whose product was deleted; it is skipped.
type StockMove struct {
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
}

// Ledger applies stock movements for order confirmation and cancellation.
// Callers pass the transaction that also records the status change.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("products repository required")
	}
	return &Ledger{repo: repo}, nil
}

// Deduct removes every move from stock or fails with INSUFFICIENT_STOCK.
// Moves are applied in product id order so concurrent orders lock rows
// in the same sequence.
func (l *Ledger) Deduct(ctx context.Context, tx *gorm.DB, moves []StockMove) error {
	repo := l.repo.WithTx(tx)
	for _, move := range ordered(moves) {
		if move.ProductID == nil || move.Quantity <= 0 {
			continue
		}
		ok, err := repo.DeductStock(ctx, *move.ProductID, move.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct stock")
		}
		if ok {
			continue
		}
		product, err := repo.FindByID(ctx, *move.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
		}
		return pkgerrors.InsufficientStock(product.Name, product.StockQuantity, move.Quantity)
	}
	return nil
}

// Restore puts every move back into stock, ignoring deleted products.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, moves []StockMove) error {
	repo := l.repo.WithTx(tx)
	for _, move := range ordered(moves) {
		if move.ProductID == nil || move.Quantity <= 0 {
			continue
		}
		if _, err := repo.RestoreStock(ctx, *move.ProductID, move.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("restore stock for %s", move.ProductName))
		}
	}
	return nil
}

func ordered(moves []StockMove) []StockMove {
	out := make([]StockMove, len(moves))
	copy(out, moves)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ProductID, out[j].ProductID
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return bytes.Compare(a[:], b[:]) < 0
	})
	return out
}
