package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jemi-ng/pickup-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirectoryIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestOrdersMigrationEnforcesUniqueOrderNumber(t *testing.T) {
	content := readMigration(t, "create_orders")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS orders_order_number_key ON orders (order_number)",
		"CREATE TABLE IF NOT EXISTS order_line_items",
		"CREATE TABLE IF NOT EXISTS order_timeline",
		"'ready_for_pickup'",
		"payment_reference varchar(64) NULL",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductsMigrationKeepsStockFlagConsistent(t *testing.T) {
	content := readMigration(t, "create_users_and_products")

	for _, sub := range []string{
		"stock_quantity integer NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)",
		"CHECK (in_stock = (stock_quantity > 0))",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationIndexesUnpublishedRows(t *testing.T) {
	content := readMigration(t, "create_outbox_events")
	if !strings.Contains(content, "WHERE published_at IS NULL") {
		t.Fatal("expected partial index on unpublished outbox rows")
	}
}
