package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"martpos/backend/internal/cache"
	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
)

var validate = validator.New()

const barcodeCacheTTL = 5 * time.Minute

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo  store.Repository
	cache cache.ProductCache
}

func New(repo store.Repository, productCache cache.ProductCache) *Service {
	if productCache == nil {
		productCache = cache.NoopProductCache{}
	}
	return &Service{repo: repo, cache: productCache}
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("admin role required")
	}
	return actor, nil
}

func (s *Service) ListProducts(ctx context.Context, searchTerm string) ([]domain.Product, error) {
	return s.repo.ListActiveProducts(ctx, searchTerm)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProductByID(ctx, id)
}

// LookupByBarcode resolves a scanned barcode. A miss is an ordinary outcome
// at the register, so it is reported through the found flag, not an error.
func (s *Service) LookupByBarcode(ctx context.Context, barcode string) (*domain.Product, bool, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, false, nil
	}

	if cached, hit, err := s.cache.Get(ctx, barcode); err != nil {
		log.Printf("[service] WARN: barcode cache read failed: %v", err)
	} else if hit {
		return cached, true, nil
	}

	product, err := s.repo.FindProductByBarcode(ctx, barcode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if err := s.cache.Set(ctx, barcode, product, barcodeCacheTTL); err != nil {
		log.Printf("[service] WARN: barcode cache write failed: %v", err)
	}
	return product, true, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if err := validate.Struct(req); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	if req.Barcode != "" {
		available, err := s.repo.ValidateBarcodeAvailable(ctx, req.Barcode, 0)
		if err != nil {
			return domain.Product{}, err
		}
		if !available {
			return domain.Product{}, fmt.Errorf("%w: barcode %s already assigned", store.ErrConstraintViolation, req.Barcode)
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
		Barcode:     req.Barcode,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if id < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.MinStock = *req.MinStock
	}
	if req.CategoryID != nil {
		updated.CategoryID = req.CategoryID
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateBarcode(ctx, saved.Barcode)
	return *saved, nil
}

// AssignBarcode sets or replaces a product's barcode after an availability
// check. An empty barcode clears the assignment.
func (s *Service) AssignBarcode(ctx context.Context, productID int64, barcode string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if productID < 1 {
		return store.ErrInvalidInput
	}

	barcode = strings.TrimSpace(barcode)
	existing, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}

	if barcode != "" {
		available, err := s.repo.ValidateBarcodeAvailable(ctx, barcode, productID)
		if err != nil {
			return err
		}
		if !available {
			return fmt.Errorf("%w: barcode %s already assigned", store.ErrConstraintViolation, barcode)
		}
	}

	if err := s.repo.UpdateProductBarcode(ctx, productID, barcode); err != nil {
		return err
	}
	s.invalidateBarcode(ctx, existing.Barcode)
	s.invalidateBarcode(ctx, barcode)
	return nil
}

func (s *Service) ListProductsWithoutBarcode(ctx context.Context) ([]domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListProductsWithoutBarcode(ctx)
}

func (s *Service) AdjustStock(ctx context.Context, productID int64, delta int) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if productID < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.AdjustStock(ctx, productID, delta)
}

func (s *Service) DeleteProduct(ctx context.Context, productID int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if productID < 1 {
		return store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.invalidateBarcode(ctx, existing.Barcode)
	return nil
}

func (s *Service) invalidateBarcode(ctx context.Context, barcode string) {
	if barcode == "" {
		return
	}
	if err := s.cache.Delete(ctx, barcode); err != nil {
		log.Printf("[service] WARN: barcode cache invalidation failed: %v", err)
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.Category{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	if id < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetSaleByID(ctx, id)
}

func (s *Service) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.repo.ListRecentSales(ctx, limit)
}

func (s *Service) DailySummary(ctx context.Context, day time.Time) (domain.DailySummary, error) {
	if day.IsZero() {
		day = time.Now().UTC()
	}
	return s.repo.GetDailySummary(ctx, day)
}

func (s *Service) SalesByDay(ctx context.Context, from time.Time, to time.Time) ([]domain.DaySales, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must precede to", store.ErrInvalidInput)
	}
	return s.repo.GetSalesByDay(ctx, from, to)
}

// SalesBetween feeds the reports UI with full sale rows for a date range.
func (s *Service) SalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must precede to", store.ErrInvalidInput)
	}
	return s.repo.ListSalesBetween(ctx, from, to)
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

// TopProducts returns the best sellers since the given time, ranked by
// quantity sold or by revenue.
func (s *Service) TopProducts(ctx context.Context, since time.Time, limit int, byRevenue bool) ([]domain.TopProduct, error) {
	if since.IsZero() {
		since = time.Now().UTC().AddDate(0, 0, -30)
	}
	if limit < 1 || limit > 50 {
		limit = 5
	}
	return s.repo.TopProducts(ctx, since, limit, byRevenue)
}
