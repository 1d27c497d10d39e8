package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"martpos/backend/internal/domain"
)

// Error taxonomy for the data layer. Raw driver errors never cross this
// boundary; implementations translate them to one of these sentinels.
var (
	ErrNotFound              = errors.New("not found")
	ErrConstraintViolation   = errors.New("constraint violation")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrQueryFailed           = errors.New("query failed")
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrInvalidInput          = errors.New("invalid input")
)

// StockConflict describes one cart line whose requested quantity exceeds the
// authoritative stock level.
type StockConflict struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockConflictError carries every violating line of a failed checkout, so
// the caller can surface all conflicts at once rather than one-by-one.
type StockConflictError struct {
	Conflicts []StockConflict
}

func (e *StockConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", c.Name, c.Requested, c.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *StockConflictError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	// Users.
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error

	// Categories.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)

	// Product catalog.
	ListActiveProducts(ctx context.Context, searchTerm string) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	ValidateBarcodeAvailable(ctx context.Context, barcode string, excludingProductID int64) (bool, error)
	ListProductsWithoutBarcode(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProductBarcode(ctx context.Context, productID int64, barcode string) error
	AdjustStock(ctx context.Context, productID int64, delta int) error
	SoftDeleteProduct(ctx context.Context, productID int64) error
	GetStockLevels(ctx context.Context, productIDs []int64) (map[int64]int, error)

	// Sales. CreateSale persists the header, its lines, and the conditional
	// stock decrements as a single transaction; a replayed idempotency key
	// returns the already-committed sale.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	FindSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error)
	ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	// Reporting. Each call is a point-in-time snapshot; no caching here.
	GetDailySummary(ctx context.Context, day time.Time) (domain.DailySummary, error)
	GetSalesByDay(ctx context.Context, from time.Time, to time.Time) ([]domain.DaySales, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	TopProducts(ctx context.Context, since time.Time, limit int, byRevenue bool) ([]domain.TopProduct, error)
}
