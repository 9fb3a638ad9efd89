// Package dbtest provides throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jemi-ng/pickup-backend/pkg/db"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
)

// Open returns an isolated in-memory database. The pool is pinned to one
// connection, so code under test must issue every query through the
// transaction handle it was given.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the transaction-capable client used by services.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}

func SeedUser(t testing.TB, conn *gorm.DB, mutate ...func(*models.User)) models.User {
	t.Helper()
	phone := "08030000000"
	user := models.User{
		Name:             "Ada Obi",
		Email:            uuid.NewString()[:8] + "@unilag.edu.ng",
		Phone:            &phone,
		ProfileCompleted: true,
	}
	for _, fn := range mutate {
		fn(&user)
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func SeedProduct(t testing.TB, conn *gorm.DB, name string, price string, stock int, mutate ...func(*models.Product)) models.Product {
	t.Helper()
	product := models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	for _, fn := range mutate {
		fn(&product)
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// SeedCart creates the user's cart holding the given product quantities, in order.
func SeedCart(t testing.TB, conn *gorm.DB, userID uuid.UUID, lines ...CartLine) models.Cart {
	t.Helper()
	cart := models.Cart{UserID: userID}
	if err := conn.Create(&cart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	for _, line := range lines {
		item := models.CartItem{CartID: cart.ID, ProductID: line.ProductID, Quantity: line.Quantity}
		if err := conn.Create(&item).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
	}
	return cart
}

type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
}

func ReloadProduct(t testing.TB, conn *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product
}

func CountCartItems(t testing.TB, conn *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	err := conn.Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	return count
}
