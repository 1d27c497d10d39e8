package domain

import "time"

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PriceCents   int64     `json:"price_cents"`
	Stock        int       `json:"stock"`
	MinStock     int       `json:"min_stock"`
	Barcode      string    `json:"barcode,omitempty"`
	CategoryID   *int64    `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=150"`
	Description string `json:"description" validate:"max=1000"`
	PriceCents  int64  `json:"price_cents" validate:"required,gt=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
	MinStock    int    `json:"min_stock" validate:"gte=0"`
	Barcode     string `json:"barcode,omitempty" validate:"omitempty,alphanum,max=64"`
	CategoryID  *int64 `json:"category_id,omitempty"`
}

type ProductUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceCents  *int64  `json:"price_cents,omitempty"`
	MinStock    *int    `json:"min_stock,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// Sale is immutable once created; there is no update or delete path.
type Sale struct {
	ID              int64      `json:"id"`
	IdempotencyKey  string     `json:"idempotency_key"`
	UserID          int64      `json:"user_id"`
	StaffName       string     `json:"staff_name,omitempty"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	TaxCents        int64      `json:"tax_cents"`
	DiscountCents   int64      `json:"discount_cents"`
	TotalCents      int64      `json:"total_cents"`
	PaymentMethod   string     `json:"payment_method"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	ChangeCents     int64      `json:"change_cents"`
	CreatedAt       time.Time  `json:"created_at"`
	Items           []SaleLine `json:"items,omitempty"`
}

type SaleLine struct {
	ProductID         int64  `json:"product_id"`
	ProductName       string `json:"product_name,omitempty"`
	Quantity          int    `json:"quantity"`
	PricePerUnitCents int64  `json:"price_per_unit_cents"`
	SubtotalCents     int64  `json:"subtotal_cents"`
}

type DailySummary struct {
	Date             string `json:"date"`
	TotalSales       int64  `json:"total_sales"`
	TotalRevenue     int64  `json:"total_revenue_cents"`
	AverageSaleCents int64  `json:"average_sale_cents"`
	TotalItems       int64  `json:"total_items"`
	UniqueItems      int64  `json:"unique_items"`
}

type DaySales struct {
	Date         string `json:"date"`
	NumSales     int64  `json:"num_sales"`
	RevenueCents int64  `json:"revenue_cents"`
	NumItems     int64  `json:"num_items"`
}

type TopProduct struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	TotalQuantity int64  `json:"total_quantity"`
	RevenueCents  int64  `json:"revenue_cents"`
}

type ReceiptLine struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// ReceiptRequest is the contract emitted to the receipt collaborator after a
// sale has been committed. Generation failures never roll back the sale.
type ReceiptRequest struct {
	SaleID          int64         `json:"sale_id"`
	Lines           []ReceiptLine `json:"line_items"`
	SubtotalCents   int64         `json:"subtotal_cents"`
	TaxCents        int64         `json:"tax_cents"`
	DiscountCents   int64         `json:"discount_cents"`
	TotalCents      int64         `json:"total_cents"`
	PaymentMethod   string        `json:"payment_method"`
	AmountPaidCents int64         `json:"amount_paid_cents,omitempty"`
	StaffName       string        `json:"staff_name"`
	CreatedAt       time.Time     `json:"created_at"`
}

type CheckoutItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// CheckoutRequest carries client line items by id only; prices and names are
// resolved server side from the catalog.
type CheckoutRequest struct {
	Items           []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	DiscountCents   int64          `json:"discount_cents" validate:"gte=0"`
	DiscountPercent *float64       `json:"discount_percent,omitempty"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=cash card"`
	AmountPaidCents int64          `json:"amount_paid_cents" validate:"gte=0"`
}

// CartSaveRequest persists an in-progress cart between requests so a terminal
// restart can pick up where it left off.
type CartSaveRequest struct {
	Items           []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	DiscountCents   int64          `json:"discount_cents" validate:"gte=0"`
	DiscountPercent *float64       `json:"discount_percent,omitempty"`
}

type CheckoutResponse struct {
	Sale        *Sale  `json:"sale"`
	ReceiptPath string `json:"receipt_path,omitempty"`
	ChangeCents int64  `json:"change_cents"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	UserID   int64
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=50"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
}

type UserView struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	Active    bool       `json:"active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserAccount is the internal persistence model for auth credentials.
type UserAccount struct {
	ID        int64
	Username  string
	Password  string
	Role      string
	Active    bool
	LastLogin *time.Time
	CreatedAt time.Time
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	PaymentCash = "cash"
	PaymentCard = "card"
)
