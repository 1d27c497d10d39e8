package memory

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	nextID       int64
	products     map[int64]domain.Product
	categories   map[int64]domain.Category
	salesByID    map[int64]*domain.Sale
	salesByIdem  map[string]*domain.Sale
	usersByName  map[string]domain.UserAccount
	nextUserID   int64
	nextSaleID   int64
	nextCatID    int64
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning printed to
// stdout. These credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	id := int64(0)
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		id++
		users[u.username] = domain.UserAccount{
			ID:        id,
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	categories := []domain.Category{
		{ID: 1, Name: "Beverages", Description: "Teas, coffees and cold drinks", Active: true},
		{ID: 2, Name: "Snacks", Description: "Packaged snacks and sweets", Active: true},
		{ID: 3, Name: "Household", Description: "Everyday household goods", Active: true},
	}
	catID := func(id int64) *int64 { return &id }
	products := []domain.Product{
		{ID: 1, Name: "Green Tea Box", Description: "20 bags of loose-leaf green tea", PriceCents: 399, Stock: 120, MinStock: 10, Barcode: "8901000000017", CategoryID: catID(1), CategoryName: "Beverages", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Name: "Masala Chai Blend", Description: "Spiced black tea blend, 250g", PriceCents: 499, Stock: 80, MinStock: 8, Barcode: "8901000000024", CategoryID: catID(1), CategoryName: "Beverages", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: 3, Name: "Honey Jar 500g", Description: "Raw wildflower honey", PriceCents: 899, Stock: 45, MinStock: 5, Barcode: "8901000000031", CategoryID: catID(2), CategoryName: "Snacks", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: 4, Name: "Butter Cookies", Description: "Tin of assorted butter cookies", PriceCents: 649, Stock: 60, MinStock: 6, Barcode: "8901000000048", CategoryID: catID(2), CategoryName: "Snacks", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: 5, Name: "Ceramic Mug", Description: "Stoneware mug, 350ml", PriceCents: 1299, Stock: 30, MinStock: 4, CategoryID: catID(3), CategoryName: "Household", Active: true, CreatedAt: now, UpdatedAt: now},
		{ID: 6, Name: "Paper Napkins", Description: "Pack of 100", PriceCents: 249, Stock: 200, MinStock: 20, Barcode: "8901000000062", CategoryID: catID(3), CategoryName: "Household", Active: true, CreatedAt: now, UpdatedAt: now},
	}

	productMap := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	categoryMap := make(map[int64]domain.Category, len(categories))
	for _, c := range categories {
		categoryMap[c.ID] = c
	}

	return &Store{
		nextID:      int64(len(products)),
		nextCatID:   int64(len(categories)),
		nextUserID:  2,
		products:    productMap,
		categories:  categoryMap,
		salesByID:   make(map[int64]*domain.Sale),
		salesByIdem: make(map[string]*domain.Sale),
		usersByName: seedUsers(),
	}
}

func (s *Store) ListActiveProducts(_ context.Context, searchTerm string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchTerm = strings.ToLower(strings.TrimSpace(searchTerm))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if searchTerm != "" && !productMatches(p, searchTerm) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func productMatches(p domain.Product, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	if strings.Contains(strings.ToLower(p.CategoryName), term) {
		return true
	}
	return strings.Contains(formatPrice(p.PriceCents), term)
}

func formatPrice(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := p
	return &copyProduct, nil
}

func (s *Store) FindProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Active && p.Barcode == barcode {
			copyProduct := p
			return &copyProduct, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ValidateBarcodeAvailable(_ context.Context, barcode string, excludingProductID int64) (bool, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return false, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Active && p.Barcode == barcode && p.ID != excludingProductID {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) ListProductsWithoutBarcode(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.Active && p.Barcode == "" {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product.Barcode = strings.TrimSpace(product.Barcode)
	if product.Barcode != "" {
		for _, p := range s.products {
			if p.Active && p.Barcode == product.Barcode {
				return nil, store.ErrConstraintViolation
			}
		}
	}

	s.nextID++
	product.ID = s.nextID
	product.Active = true
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.CategoryID != nil {
		if cat, ok := s.categories[*product.CategoryID]; ok {
			product.CategoryName = cat.Name
		}
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID < 1 || product.Name == "" || product.PriceCents < 1 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	existing.Name = product.Name
	existing.Description = product.Description
	existing.PriceCents = product.PriceCents
	existing.MinStock = product.MinStock
	existing.CategoryID = product.CategoryID
	existing.Active = product.Active
	existing.CategoryName = ""
	if product.CategoryID != nil {
		if cat, ok := s.categories[*product.CategoryID]; ok {
			existing.CategoryName = cat.Name
		}
	}
	existing.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) UpdateProductBarcode(_ context.Context, productID int64, barcode string) error {
	barcode = strings.TrimSpace(barcode)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[productID]
	if !exists || !p.Active {
		return store.ErrNotFound
	}
	if barcode != "" {
		for _, other := range s.products {
			if other.Active && other.Barcode == barcode && other.ID != productID {
				return store.ErrConstraintViolation
			}
		}
	}
	p.Barcode = barcode
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) AdjustStock(_ context.Context, productID int64, delta int) error {
	if delta == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[productID]
	if !exists || !p.Active {
		return store.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return store.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) SoftDeleteProduct(_ context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[productID]
	if !exists || !p.Active {
		return store.ErrNotFound
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) GetStockLevels(_ context.Context, productIDs []int64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make(map[int64]int, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok && p.Active {
			levels[id] = p.Stock
		}
	}
	return levels, nil
}

// CreateSale mirrors the transactional contract of the database store: the
// whole sale either lands with every decrement applied, or nothing changes.
// All shortages are collected before failing so the caller sees every
// conflict at once.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
		return cloneSale(existing), nil
	}

	conflicts := make([]store.StockConflict, 0)
	for _, item := range sale.Items {
		if item.Quantity < 1 || item.PricePerUnitCents < 0 {
			return nil, store.ErrInvalidInput
		}
		p, exists := s.products[item.ProductID]
		if !exists || !p.Active {
			conflicts = append(conflicts, store.StockConflict{
				ProductID: item.ProductID,
				Name:      item.ProductName,
				Requested: item.Quantity,
				Available: 0,
			})
			continue
		}
		if p.Stock < item.Quantity {
			conflicts = append(conflicts, store.StockConflict{
				ProductID: item.ProductID,
				Name:      p.Name,
				Requested: item.Quantity,
				Available: p.Stock,
			})
		}
	}
	if len(conflicts) > 0 {
		return nil, &store.StockConflictError{Conflicts: conflicts}
	}

	now := time.Now().UTC()
	for _, item := range sale.Items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = now
		s.products[item.ProductID] = p
	}

	s.nextSaleID++
	sale.ID = s.nextSaleID
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	s.salesByIdem[sale.IdempotencyKey] = saved
	return cloneSale(saved), nil
}

func (s *Store) FindSaleByIdempotencyKey(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) GetSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListRecentSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 10
	}
	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sales = append(sales, *cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return int(b.ID - a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, 32)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return int(a.ID - b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sales, nil
}

func (s *Store) GetDailySummary(_ context.Context, day time.Time) (domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	summary := domain.DailySummary{Date: from.Format("2006-01-02")}

	uniqueProducts := map[int64]struct{}{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.TotalSales++
		summary.TotalRevenue += sale.TotalCents
		for _, item := range sale.Items {
			summary.TotalItems += int64(item.Quantity)
			uniqueProducts[item.ProductID] = struct{}{}
		}
	}
	summary.UniqueItems = int64(len(uniqueProducts))
	if summary.TotalSales > 0 {
		summary.AverageSaleCents = int64(math.Round(float64(summary.TotalRevenue) / float64(summary.TotalSales)))
	}
	return summary, nil
}

func (s *Store) GetSalesByDay(_ context.Context, from time.Time, to time.Time) ([]domain.DaySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[string]*domain.DaySales{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		day := sale.CreatedAt.UTC().Format("2006-01-02")
		entry := byDay[day]
		if entry == nil {
			entry = &domain.DaySales{Date: day}
			byDay[day] = entry
		}
		entry.NumSales++
		entry.RevenueCents += sale.TotalCents
		for _, item := range sale.Items {
			entry.NumItems += int64(item.Quantity)
		}
	}

	series := make([]domain.DaySales, 0, len(byDay))
	for _, entry := range byDay {
		series = append(series, *entry)
	}
	slices.SortFunc(series, func(a, b domain.DaySales) int {
		return cmpString(a.Date, b.Date)
	})
	return series, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.Active && p.Stock <= p.MinStock {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		return a.Stock - b.Stock
	})
	return products, nil
}

func (s *Store) TopProducts(_ context.Context, since time.Time, limit int, byRevenue bool) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 5
	}
	byProduct := map[int64]*domain.TopProduct{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(since) {
			continue
		}
		for _, item := range sale.Items {
			entry := byProduct[item.ProductID]
			if entry == nil {
				name := item.ProductName
				if p, ok := s.products[item.ProductID]; ok {
					name = p.Name
				}
				entry = &domain.TopProduct{ProductID: item.ProductID, Name: name}
				byProduct[item.ProductID] = entry
			}
			entry.TotalQuantity += int64(item.Quantity)
			entry.RevenueCents += item.SubtotalCents
		}
	}

	top := make([]domain.TopProduct, 0, len(byProduct))
	for _, entry := range byProduct {
		top = append(top, *entry)
	}
	slices.SortFunc(top, func(a, b domain.TopProduct) int {
		if byRevenue {
			if a.RevenueCents == b.RevenueCents {
				return cmpString(a.Name, b.Name)
			}
			if a.RevenueCents > b.RevenueCents {
				return -1
			}
			return 1
		}
		if a.TotalQuantity == b.TotalQuantity {
			return cmpString(a.Name, b.Name)
		}
		if a.TotalQuantity > b.TotalQuantity {
			return -1
		}
		return 1
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if !c.Active {
			continue
		}
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Active && strings.EqualFold(c.Name, category.Name) {
			return nil, store.ErrConstraintViolation
		}
	}

	s.nextCatID++
	category.ID = s.nextCatID
	category.Active = true
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByName[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" || user.Role == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.usersByName[username]; exists {
		return nil, store.ErrConstraintViolation
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.Username = username
	user.Active = true
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByName[username] = user
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, user := range s.usersByName {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(passwordHash) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByName[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = passwordHash
	s.usersByName[username] = user
	return nil
}

func (s *Store) TouchLastLogin(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for username, user := range s.usersByName {
		if user.ID == userID {
			loginAt := at.UTC()
			user.LastLogin = &loginAt
			s.usersByName[username] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
