package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemi-ng/pickup-backend/pkg/db/dbtest"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
)

func TestLinesAndClear(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.SeedUser(t, conn)
	other := dbtest.SeedUser(t, conn)
	rice := dbtest.SeedProduct(t, conn, "Jollof Rice", "12500.00", 10)
	water := dbtest.SeedProduct(t, conn, "Eva Water", "300.00", 10)

	dbtest.SeedCart(t, conn, user.ID,
		dbtest.CartLine{ProductID: rice.ID, Quantity: 2},
		dbtest.CartLine{ProductID: water.ID, Quantity: 1},
	)
	dbtest.SeedCart(t, conn, other.ID, dbtest.CartLine{ProductID: rice.ID, Quantity: 1})

	repo := NewRepository(conn)
	lines, err := repo.Lines(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, rice.ID, lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)

	removed, err := repo.Clear(context.Background(), user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	lines, err = repo.Lines(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.EqualValues(t, 1, dbtest.CountCartItems(t, conn, other.ID), "other carts are untouched")

	var carts int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("user_id = ?", user.ID).Count(&carts).Error)
	assert.EqualValues(t, 1, carts, "the cart row survives being emptied")
}
