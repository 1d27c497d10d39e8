package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
)

// Integration test against a real PostgreSQL instance with schema.sql applied.
// Skipped unless MARTPOS_TEST_DATABASE_URL points at a throwaway database.
func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("MARTPOS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MARTPOS_TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := New(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	stamp := time.Now().UnixNano()
	barcode := fmt.Sprintf("it%d", stamp)

	product, err := s.CreateProduct(ctx, domain.Product{
		Name:       fmt.Sprintf("Integration Tea %d", stamp),
		PriceCents: 450,
		Stock:      10,
		MinStock:   2,
		Barcode:    barcode,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_ = s.SoftDeleteProduct(context.Background(), product.ID)
	})

	found, err := s.FindProductByBarcode(ctx, barcode)
	if err != nil {
		t.Fatalf("find by barcode: %v", err)
	}
	if found.ID != product.ID {
		t.Fatalf("expected product %d, got %d", product.ID, found.ID)
	}

	available, err := s.ValidateBarcodeAvailable(ctx, barcode, 0)
	if err != nil {
		t.Fatalf("validate barcode: %v", err)
	}
	if available {
		t.Fatalf("assigned barcode must not be available")
	}

	key := fmt.Sprintf("it-sale-%d", stamp)
	sale := domain.Sale{
		IdempotencyKey: key,
		SubtotalCents:  900,
		TaxCents:       90,
		TotalCents:     990,
		PaymentMethod:  domain.PaymentCard,
		Items: []domain.SaleLine{
			{ProductID: product.ID, Quantity: 2, PricePerUnitCents: 450, SubtotalCents: 900},
		},
	}

	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	replay, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("replay sale: %v", err)
	}
	if replay.ID != created.ID {
		t.Fatalf("replay must return the committed sale, got %d want %d", replay.ID, created.ID)
	}

	after, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 8 {
		t.Fatalf("expected stock 8 after sale and replay, got %d", after.Stock)
	}

	oversell := domain.Sale{
		IdempotencyKey: fmt.Sprintf("it-oversell-%d", stamp),
		SubtotalCents:  45000,
		TaxCents:       4500,
		TotalCents:     49500,
		PaymentMethod:  domain.PaymentCard,
		Items: []domain.SaleLine{
			{ProductID: product.ID, Quantity: 100, PricePerUnitCents: 450, SubtotalCents: 45000},
		},
	}
	_, err = s.CreateSale(ctx, oversell)
	var conflict *store.StockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].Available != 8 {
		t.Fatalf("unexpected conflicts: %+v", conflict.Conflicts)
	}

	unchanged, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if unchanged.Stock != 8 {
		t.Fatalf("failed sale must not move stock, got %d", unchanged.Stock)
	}

	recent, err := s.ListRecentSales(ctx, 5)
	if err != nil {
		t.Fatalf("list recent sales: %v", err)
	}
	var listed *domain.Sale
	for i := range recent {
		if recent[i].ID == created.ID {
			listed = &recent[i]
		}
	}
	if listed == nil {
		t.Fatalf("committed sale missing from recent list")
	}
	if len(listed.Items) != 1 || listed.Items[0].ProductID != product.ID {
		t.Fatalf("listed sale must carry its items, got %+v", listed.Items)
	}

	categoryName := fmt.Sprintf("Integration Teas %d", stamp)
	category, err := s.CreateCategory(ctx, domain.Category{Name: categoryName})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(context.Background(), `DELETE FROM categories WHERE id = $1`, category.ID)
	})

	_, err = s.CreateCategory(ctx, domain.Category{Name: strings.ToUpper(categoryName)})
	if !errors.Is(err, store.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation for duplicate category name, got %v", err)
	}
}
