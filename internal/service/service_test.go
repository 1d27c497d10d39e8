package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
	"martpos/backend/internal/store/memory"
)

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 2, Username: "staff", Role: domain.RoleStaff})
}

type countingCache struct {
	entries map[string]*domain.Product
	gets    int
	hits    int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[string]*domain.Product{}}
}

func (c *countingCache) Get(_ context.Context, barcode string) (*domain.Product, bool, error) {
	c.gets++
	if p, ok := c.entries[barcode]; ok {
		c.hits++
		return p, true, nil
	}
	return nil, false, nil
}

func (c *countingCache) Set(_ context.Context, barcode string, product *domain.Product, _ time.Duration) error {
	c.entries[barcode] = product
	return nil
}

func (c *countingCache) Delete(_ context.Context, barcode string) error {
	delete(c.entries, barcode)
	return nil
}

func TestLookupByBarcodePopulatesCache(t *testing.T) {
	cache := newCountingCache()
	svc := New(memory.NewSeeded(), cache)

	product, found, err := svc.LookupByBarcode(context.Background(), "8901000000017")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found || product.ID != 1 {
		t.Fatalf("expected product 1, got found=%v product=%+v", found, product)
	}

	_, found, err = svc.LookupByBarcode(context.Background(), "8901000000017")
	if err != nil || !found {
		t.Fatalf("second lookup: found=%v err=%v", found, err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected second lookup to hit the cache, hits=%d", cache.hits)
	}
}

func TestLookupByBarcodeMissIsNotAnError(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	product, found, err := svc.LookupByBarcode(context.Background(), "0000000000000")
	if err != nil {
		t.Fatalf("unknown barcode must not be an error, got %v", err)
	}
	if found || product != nil {
		t.Fatalf("expected miss, got found=%v product=%+v", found, product)
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	req := domain.ProductCreateRequest{Name: "Earl Grey Tin", PriceCents: 549, Stock: 10}
	if _, err := svc.CreateProduct(staffCtx(), req); err == nil {
		t.Fatalf("expected staff actor to be rejected")
	}
	if _, err := svc.CreateProduct(context.Background(), req); err == nil {
		t.Fatalf("expected missing actor to be rejected")
	}
	if _, err := svc.CreateProduct(adminCtx(), req); err != nil {
		t.Fatalf("admin create: %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	cases := []domain.ProductCreateRequest{
		{Name: "", PriceCents: 100},
		{Name: "Free Sample", PriceCents: 0},
		{Name: "Negative Stock", PriceCents: 100, Stock: -1},
		{Name: "Bad Barcode", PriceCents: 100, Barcode: "has spaces"},
	}
	for _, req := range cases {
		if _, err := svc.CreateProduct(adminCtx(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", req, err)
		}
	}
}

func TestCreateProductRejectsDuplicateBarcode(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:       "Green Tea Clone",
		PriceCents: 399,
		Barcode:    "8901000000017",
	})
	if !errors.Is(err, store.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
}

func TestAssignBarcodeInvalidatesOldCacheEntry(t *testing.T) {
	cache := newCountingCache()
	svc := New(memory.NewSeeded(), cache)

	// Warm the cache with the current barcode of product 1.
	if _, found, err := svc.LookupByBarcode(context.Background(), "8901000000017"); err != nil || !found {
		t.Fatalf("warm lookup: found=%v err=%v", found, err)
	}

	if err := svc.AssignBarcode(adminCtx(), 1, "8901000000999"); err != nil {
		t.Fatalf("assign barcode: %v", err)
	}
	if _, stale := cache.entries["8901000000017"]; stale {
		t.Fatalf("old barcode must be evicted from the cache")
	}

	product, found, err := svc.LookupByBarcode(context.Background(), "8901000000999")
	if err != nil || !found {
		t.Fatalf("new barcode lookup: found=%v err=%v", found, err)
	}
	if product.ID != 1 {
		t.Fatalf("expected product 1 under the new barcode, got %d", product.ID)
	}
}

func TestAssignBarcodeRejectsTakenBarcode(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	err := svc.AssignBarcode(adminCtx(), 2, "8901000000017")
	if !errors.Is(err, store.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if err := svc.AssignBarcode(staffCtx(), 5, "8901000000555"); err == nil {
		t.Fatalf("expected staff actor to be rejected")
	}
}

func TestUpdateProductMergesFields(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	newPrice := int64(459)
	updated, err := svc.UpdateProduct(adminCtx(), 1, domain.ProductUpdateRequest{PriceCents: &newPrice})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.PriceCents != 459 {
		t.Fatalf("expected price 459, got %d", updated.PriceCents)
	}
	if updated.Name != "Green Tea Box" {
		t.Fatalf("untouched fields must survive, got name %q", updated.Name)
	}

	badPrice := int64(0)
	if _, err := svc.UpdateProduct(adminCtx(), 1, domain.ProductUpdateRequest{PriceCents: &badPrice}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero price, got %v", err)
	}
}

func TestDeleteProductRequiresAdminAndEvictsCache(t *testing.T) {
	cache := newCountingCache()
	svc := New(memory.NewSeeded(), cache)

	if _, found, err := svc.LookupByBarcode(context.Background(), "8901000000017"); err != nil || !found {
		t.Fatalf("warm lookup: found=%v err=%v", found, err)
	}

	if err := svc.DeleteProduct(staffCtx(), 1); err == nil {
		t.Fatalf("expected staff actor to be rejected")
	}
	if err := svc.DeleteProduct(adminCtx(), 1); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, stale := cache.entries["8901000000017"]; stale {
		t.Fatalf("deleted product must be evicted from the cache")
	}
}

func TestSalesByDayRejectsInvertedRange(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	now := time.Now().UTC()
	if _, err := svc.SalesByDay(context.Background(), now, now.AddDate(0, 0, -1)); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for inverted range, got %v", err)
	}
	if _, err := svc.SalesByDay(context.Background(), time.Time{}, time.Time{}); err != nil {
		t.Fatalf("zero range must default to the last 30 days, got %v", err)
	}
}

func TestCreateCategoryValidatesAndRequiresAdmin(t *testing.T) {
	svc := New(memory.NewSeeded(), nil)

	if _, err := svc.CreateCategory(staffCtx(), domain.CategoryCreateRequest{Name: "Bakery"}); err == nil {
		t.Fatalf("expected staff actor to be rejected")
	}
	if _, err := svc.CreateCategory(adminCtx(), domain.CategoryCreateRequest{Name: "   "}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected blank name to be rejected")
	}
	created, err := svc.CreateCategory(adminCtx(), domain.CategoryCreateRequest{Name: "Bakery"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if created.ID == 0 || !created.Active {
		t.Fatalf("unexpected created category: %+v", created)
	}
}
