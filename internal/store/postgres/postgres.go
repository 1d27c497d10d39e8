package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
)

const (
	maxAttempts = 3
	retryDelay  = 500 * time.Millisecond
)

type Store struct {
	db *sql.DB
}

// New opens a bounded connection pool against databaseURL. The session
// encoding is pinned to UTF8 through the DSN, so every pooled connection is
// created with the right charset and reuses never mix encodings. An
// unreachable database is a fatal startup condition; the error is returned
// without retry.
func New(ctx context.Context, databaseURL string, poolSize int) (*Store, error) {
	if poolSize < 1 {
		poolSize = 5
	}

	db, err := sql.Open("pgx", withClientEncoding(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrConnectionUnavailable, err)
	}

	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrConnectionUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close releases all pooled connections. Safe to call more than once.
func (s *Store) Close() error {
	return s.db.Close()
}

func withClientEncoding(databaseURL string) string {
	if strings.Contains(databaseURL, "client_encoding") {
		return databaseURL
	}
	sep := "?"
	if strings.Contains(databaseURL, "?") {
		sep = "&"
	}
	return databaseURL + sep + "client_encoding=UTF8"
}

// isTransient reports whether err is expected to succeed on retry: lost or
// refused connections, pool checkout timeouts, serialization failures.
// Constraint violations are never transient.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		switch pgErr.Code {
		case "40001", "40P01", "57P01":
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}

// withRetries runs op up to maxAttempts times with a fixed delay between
// attempts. Non-transient errors surface immediately; exhausted retries are
// reported as ErrQueryFailed wrapping the last underlying error.
func (s *Store) withRetries(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return translate(err)
		}
		lastErr = err
		if attempt < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", store.ErrQueryFailed, ctx.Err())
			}
		}
	}
	return fmt.Errorf("%w: %w", store.ErrQueryFailed, lastErr)
}

// translate maps driver errors to the store taxonomy. It is the only place a
// pgconn error is inspected on the way out.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if isConstraintViolation(err) {
		var pgErr *pgconn.PgError
		_ = errors.As(err, &pgErr)
		return fmt.Errorf("%w: %s", store.ErrConstraintViolation, pgErr.ConstraintName)
	}
	var alreadyTranslated *store.StockConflictError
	if errors.As(err, &alreadyTranslated) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, store.ErrInsufficientStock) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrQueryFailed, err)
}

const productColumns = `
	p.id, p.name, COALESCE(p.description, ''), p.price_cents, p.stock,
	p.min_stock, COALESCE(p.barcode, ''), p.category_id, COALESCE(c.name, ''),
	p.is_active, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	var categoryID sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock,
		&p.MinStock, &p.Barcode, &categoryID, &p.CategoryName,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		p.CategoryID = &id
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	var products []domain.Product
	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		products = make([]domain.Product, 0, 64)
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			products = append(products, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListActiveProducts(ctx context.Context, searchTerm string) ([]domain.Product, error) {
	searchTerm = strings.TrimSpace(searchTerm)
	if searchTerm == "" {
		return s.queryProducts(ctx, `
			SELECT `+productColumns+`
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			WHERE p.is_active = TRUE
			ORDER BY p.name ASC
		`)
	}

	pattern := "%" + searchTerm + "%"
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active = TRUE
			AND (
				p.name ILIKE $1
				OR p.description ILIKE $1
				OR c.name ILIKE $1
				OR to_char(p.price_cents / 100.0, 'FM999999990.00') LIKE $1
			)
		ORDER BY p.name ASC
	`, pattern)
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := s.withRetries(ctx, func(ctx context.Context) error {
		p, err := scanProduct(s.db.QueryRowContext(ctx, `
			SELECT `+productColumns+`
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			WHERE p.id = $1
		`, id))
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	var product domain.Product
	err := s.withRetries(ctx, func(ctx context.Context) error {
		p, err := scanProduct(s.db.QueryRowContext(ctx, `
			SELECT `+productColumns+`
			FROM products p
			LEFT JOIN categories c ON c.id = p.category_id
			WHERE p.barcode = $1 AND p.is_active = TRUE
		`, barcode))
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) ValidateBarcodeAvailable(ctx context.Context, barcode string, excludingProductID int64) (bool, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return false, store.ErrInvalidInput
	}

	var available bool
	err := s.withRetries(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT NOT EXISTS (
				SELECT 1 FROM products
				WHERE barcode = $1 AND is_active = TRUE AND id <> $2
			)
		`, barcode, excludingProductID).Scan(&available)
	})
	if err != nil {
		return false, err
	}
	return available, nil
}

func (s *Store) ListProductsWithoutBarcode(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE (p.barcode IS NULL OR p.barcode = '') AND p.is_active = TRUE
		ORDER BY p.name ASC
	`)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	created := product
	created.Active = true
	err := s.withRetries(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			INSERT INTO products (name, description, price_cents, stock, min_stock, barcode, category_id, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, TRUE, now(), now())
			RETURNING id, created_at, updated_at
		`, product.Name, product.Description, product.PriceCents, product.Stock,
			product.MinStock, product.Barcode, nullInt64(product.CategoryID),
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	created.CreatedAt = created.CreatedAt.UTC()
	created.UpdatedAt = created.UpdatedAt.UTC()
	return &created, nil
}

// UpdateProduct writes the fixed set of editable columns. Stock and barcode
// have their own paths (AdjustStock, UpdateProductBarcode, CreateSale).
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID < 1 || product.Name == "" || product.PriceCents < 1 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	err := s.withRetries(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET name = $2, description = $3, price_cents = $4, min_stock = $5,
				category_id = $6, is_active = $7, updated_at = now()
			WHERE id = $1
		`, product.ID, product.Name, product.Description, product.PriceCents,
			product.MinStock, nullInt64(product.CategoryID), product.Active)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) UpdateProductBarcode(ctx context.Context, productID int64, barcode string) error {
	barcode = strings.TrimSpace(barcode)
	return s.withRetries(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET barcode = NULLIF($2, ''), updated_at = now()
			WHERE id = $1 AND is_active = TRUE
		`, productID, barcode)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// AdjustStock applies an admin stock correction. The sale path never calls
// this; checkout decrements happen inside CreateSale's transaction.
func (s *Store) AdjustStock(ctx context.Context, productID int64, delta int) error {
	if delta == 0 {
		return nil
	}
	return s.withRetries(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $2, updated_at = now()
			WHERE id = $1 AND is_active = TRUE AND stock + $2 >= 0
		`, productID, delta)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := s.GetProductByID(ctx, productID); err != nil {
				return err
			}
			return store.ErrInsufficientStock
		}
		return nil
	})
}

func (s *Store) SoftDeleteProduct(ctx context.Context, productID int64) error {
	return s.withRetries(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET is_active = FALSE, updated_at = now()
			WHERE id = $1 AND is_active = TRUE
		`, productID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetStockLevels(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	levels := make(map[int64]int, len(productIDs))
	if len(productIDs) == 0 {
		return levels, nil
	}

	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, stock
			FROM products
			WHERE is_active = TRUE AND id = ANY($1)
		`, productIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var stock int
			if err := rows.Scan(&id, &stock); err != nil {
				return err
			}
			levels[id] = stock
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// CreateSale persists the sale header, its lines, and the stock decrements as
// one transaction. The decrement is a conditional UPDATE guarded by
// stock >= qty; zero rows affected is the authoritative insufficient-stock
// signal, so concurrent checkouts on the same product cannot oversell. All
// shortages are collected before rolling back so the caller sees every
// conflict at once. A replayed idempotency key returns the committed sale
// instead of creating a duplicate.
//
// CreateSale itself makes a single attempt; the checkout orchestrator owns
// the retry-the-whole-unit policy.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, item := range sale.Items {
		if item.Quantity < 1 || item.PricePerUnitCents < 0 {
			return nil, store.ErrInvalidInput
		}
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, translate(err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (idempotency_key, user_id, subtotal_cents, tax_cents, discount_cents,
			total_amount_cents, payment_method, amount_paid_cents, change_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, sale.IdempotencyKey, nullID(sale.UserID), sale.SubtotalCents, sale.TaxCents, sale.DiscountCents,
		sale.TotalCents, sale.PaymentMethod, sale.AmountPaidCents, sale.ChangeCents, sale.CreatedAt,
	).Scan(&sale.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.FindSaleByIdempotencyKey(ctx, sale.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
		}
		return nil, translate(err)
	}

	// Sale lines must be durable before any stock moves (FK ordering).
	for _, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, price_per_unit_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5)
		`, sale.ID, item.ProductID, item.Quantity, item.PricePerUnitCents, item.SubtotalCents)
		if err != nil {
			return nil, translate(err)
		}
	}

	conflicts := make([]store.StockConflict, 0)
	for _, item := range sale.Items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND is_active = TRUE AND stock >= $1
		`, item.Quantity, item.ProductID)
		if err != nil {
			return nil, translate(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, translate(err)
		}
		if affected == 0 {
			var name string
			var available int
			err := tx.QueryRowContext(ctx, `
				SELECT name, stock FROM products WHERE id = $1 AND is_active = TRUE
			`, item.ProductID).Scan(&name, &available)
			if errors.Is(err, sql.ErrNoRows) {
				name = item.ProductName
				available = 0
			} else if err != nil {
				return nil, translate(err)
			}
			conflicts = append(conflicts, store.StockConflict{
				ProductID: item.ProductID,
				Name:      name,
				Requested: item.Quantity,
				Available: available,
			})
		}
	}
	if len(conflicts) > 0 {
		return nil, &store.StockConflictError{Conflicts: conflicts}
	}

	if err := tx.Commit(); err != nil {
		return nil, translate(err)
	}

	created := sale
	return &created, nil
}

const saleColumns = `
	s.id, s.idempotency_key, COALESCE(s.user_id, 0), COALESCE(u.username, ''), s.subtotal_cents,
	s.tax_cents, s.discount_cents, s.total_amount_cents, s.payment_method,
	s.amount_paid_cents, s.change_cents, s.created_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.IdempotencyKey, &sale.UserID, &sale.StaffName,
		&sale.SubtotalCents, &sale.TaxCents, &sale.DiscountCents, &sale.TotalCents,
		&sale.PaymentMethod, &sale.AmountPaidCents, &sale.ChangeCents, &sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleID int64) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, COALESCE(p.name, ''), si.quantity, si.price_per_unit_cents, si.subtotal_cents
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity,
			&line.PricePerUnitCents, &line.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, line)
	}
	return items, rows.Err()
}

func (s *Store) findSale(ctx context.Context, where string, value any) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.withRetries(ctx, func(ctx context.Context) error {
		found, err := scanSale(s.db.QueryRowContext(ctx, `
			SELECT `+saleColumns+`
			FROM sales s
			LEFT JOIN users u ON u.id = s.user_id
			WHERE `+where+` = $1
		`, value))
		if err != nil {
			return err
		}
		items, err := s.loadSaleItems(ctx, found.ID)
		if err != nil {
			return err
		}
		found.Items = items
		sale = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) FindSaleByIdempotencyKey(ctx context.Context, key string) (*domain.Sale, error) {
	return s.findSale(ctx, "s.idempotency_key", key)
}

func (s *Store) GetSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.findSale(ctx, "s.id", id)
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		sales = make([]domain.Sale, 0, 32)
		for rows.Next() {
			sale, err := scanSale(rows)
			if err != nil {
				return err
			}
			sales = append(sales, sale)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return s.attachSaleItems(ctx, sales)
	})
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// attachSaleItems fills Items for every sale in one query, so listed sales
// carry the same shape as a single-sale lookup.
func (s *Store) attachSaleItems(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(sales))
	bySale := make(map[int64]*domain.Sale, len(sales))
	for i := range sales {
		ids = append(ids, sales[i].ID)
		bySale[sales[i].ID] = &sales[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.sale_id, si.product_id, COALESCE(p.name, ''), si.quantity, si.price_per_unit_cents, si.subtotal_cents
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ANY($1)
		ORDER BY si.sale_id ASC, si.id ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID int64
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.ProductName, &line.Quantity,
			&line.PricePerUnitCents, &line.SubtotalCents); err != nil {
			return err
		}
		if sale, ok := bySale[saleID]; ok {
			sale.Items = append(sale.Items, line)
		}
	}
	return rows.Err()
}

func (s *Store) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 10
	}
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales s
		LEFT JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at DESC
		LIMIT $1
	`, limit)
}

func (s *Store) ListSalesBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		ORDER BY s.created_at ASC
	`, from, to)
}

func (s *Store) GetDailySummary(ctx context.Context, day time.Time) (domain.DailySummary, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	summary := domain.DailySummary{Date: from.Format("2006-01-02")}

	err := s.withRetries(ctx, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, `
			SELECT
				COUNT(*)::bigint,
				COALESCE(SUM(total_amount_cents), 0)::bigint,
				COALESCE(AVG(total_amount_cents), 0)::bigint
			FROM sales
			WHERE created_at >= $1 AND created_at < $2
		`, from, to).Scan(&summary.TotalSales, &summary.TotalRevenue, &summary.AverageSaleCents)
		if err != nil {
			return err
		}

		return s.db.QueryRowContext(ctx, `
			SELECT
				COALESCE(SUM(si.quantity), 0)::bigint,
				COUNT(DISTINCT si.product_id)::bigint
			FROM sale_items si
			JOIN sales s ON s.id = si.sale_id
			WHERE s.created_at >= $1 AND s.created_at < $2
		`, from, to).Scan(&summary.TotalItems, &summary.UniqueItems)
	})
	if err != nil {
		return domain.DailySummary{}, err
	}
	return summary, nil
}

func (s *Store) GetSalesByDay(ctx context.Context, from time.Time, to time.Time) ([]domain.DaySales, error) {
	var series []domain.DaySales
	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT
				to_char(d.day, 'YYYY-MM-DD'),
				COUNT(*)::bigint,
				COALESCE(SUM(d.total_cents), 0)::bigint,
				COALESCE(SUM(d.item_count), 0)::bigint
			FROM (
				SELECT
					date_trunc('day', s.created_at) AS day,
					s.total_amount_cents AS total_cents,
					COALESCE((SELECT SUM(si.quantity) FROM sale_items si WHERE si.sale_id = s.id), 0) AS item_count
				FROM sales s
				WHERE s.created_at >= $1 AND s.created_at < $2
			) d
			GROUP BY d.day
			ORDER BY d.day
		`, from, to)
		if err != nil {
			return err
		}
		defer rows.Close()

		series = make([]domain.DaySales, 0, 31)
		for rows.Next() {
			var row domain.DaySales
			if err := rows.Scan(&row.Date, &row.NumSales, &row.RevenueCents, &row.NumItems); err != nil {
				return err
			}
			series = append(series, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active = TRUE AND p.stock <= p.min_stock
		ORDER BY p.stock ASC, p.name ASC
	`)
}

func (s *Store) TopProducts(ctx context.Context, since time.Time, limit int, byRevenue bool) ([]domain.TopProduct, error) {
	if limit < 1 {
		limit = 5
	}
	orderBy := "total_quantity DESC"
	if byRevenue {
		orderBy = "revenue_cents DESC"
	}

	var top []domain.TopProduct
	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.id, p.name,
				COALESCE(SUM(si.quantity), 0)::bigint AS total_quantity,
				COALESCE(SUM(si.subtotal_cents), 0)::bigint AS revenue_cents
			FROM sale_items si
			JOIN sales s ON s.id = si.sale_id
			JOIN products p ON p.id = si.product_id
			WHERE s.created_at >= $1
			GROUP BY p.id, p.name
			ORDER BY `+orderBy+`
			LIMIT $2
		`, since, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		top = make([]domain.TopProduct, 0, limit)
		for rows.Next() {
			var row domain.TopProduct
			if err := rows.Scan(&row.ProductID, &row.Name, &row.TotalQuantity, &row.RevenueCents); err != nil {
				return err
			}
			top = append(top, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return top, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, name, COALESCE(description, ''), is_active
			FROM categories
			WHERE is_active = TRUE
			ORDER BY name ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		categories = make([]domain.Category, 0, 16)
		for rows.Next() {
			var c domain.Category
			if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Active); err != nil {
				return err
			}
			categories = append(categories, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	created := category
	created.Active = true
	err := s.withRetries(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			INSERT INTO categories (name, description, is_active)
			VALUES ($1, $2, TRUE)
			RETURNING id
		`, category.Name, category.Description).Scan(&created.ID)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	var lastLogin sql.NullTime
	err := s.withRetries(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, username, password, role, is_active, last_login, created_at
			FROM users
			WHERE username = $1
		`, username).Scan(&user.ID, &user.Username, &user.Password, &user.Role,
			&user.Active, &lastLogin, &user.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		at := lastLogin.Time.UTC()
		user.LastLogin = &at
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return nil, store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	created := user
	created.Active = true
	err := s.withRetries(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			INSERT INTO users (username, password, role, is_active, created_at)
			VALUES ($1, $2, $3, TRUE, $4)
			RETURNING id
		`, user.Username, user.Password, user.Role, user.CreatedAt).Scan(&created.ID)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var users []domain.UserAccount
	err := s.withRetries(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, username, password, role, is_active, last_login, created_at
			FROM users
			ORDER BY username ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		users = make([]domain.UserAccount, 0, 16)
		for rows.Next() {
			var user domain.UserAccount
			var lastLogin sql.NullTime
			if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role,
				&user.Active, &lastLogin, &user.CreatedAt); err != nil {
				return err
			}
			if lastLogin.Valid {
				at := lastLogin.Time.UTC()
				user.LastLogin = &at
			}
			user.CreatedAt = user.CreatedAt.UTC()
			users = append(users, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	return s.withRetries(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE users SET password = $2 WHERE username = $1
		`, username, passwordHash)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	return s.withRetries(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE users SET last_login = $2 WHERE id = $1
		`, userID, at)
		return err
	})
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullID(id int64) any {
	if id < 1 {
		return nil
	}
	return id
}
