// Package checkout drives a cart through validation, persistence, and receipt
// emission. The persist step is duplicate-safe: every attempt of one checkout
// carries the same idempotency key, so a retry after an ambiguous failure can
// never charge the customer twice.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"martpos/backend/internal/cart"
	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
	"martpos/backend/internal/xid"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StatePersisting State = "persisting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

const (
	persistAttempts = 3
	persistDelay    = 500 * time.Millisecond
)

// ReceiptSink receives the receipt request after a sale has committed.
// Failures are logged and swallowed; the sale stands regardless.
type ReceiptSink interface {
	Generate(ctx context.Context, req domain.ReceiptRequest) (string, error)
}

// Request describes one checkout of the given cart. AmountPaidCents is only
// meaningful for cash payments.
type Request struct {
	Cart            *cart.Cart
	UserID          int64
	StaffName       string
	PaymentMethod   string
	AmountPaidCents int64
}

// Result reports the committed sale plus the receipt location when one was
// generated.
type Result struct {
	Sale        *domain.Sale
	ReceiptPath string
	ChangeCents int64
}

// Orchestrator runs one checkout at a time; Run serializes callers the way a
// single register serializes customers.
type Orchestrator struct {
	repo             store.Repository
	receipts         ReceiptSink
	taxRatePercent   float64
	cartSnapshotPath string

	runMu sync.Mutex
	mu    sync.Mutex
	state State
}

func NewOrchestrator(repo store.Repository, receipts ReceiptSink, taxRatePercent float64, cartSnapshotPath string) *Orchestrator {
	return &Orchestrator{
		repo:             repo,
		receipts:         receipts,
		taxRatePercent:   taxRatePercent,
		cartSnapshotPath: cartSnapshotPath,
		state:            StateIdle,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) TaxRatePercent() float64 {
	return o.taxRatePercent
}

// SaveCart persists the in-progress cart so a crashed terminal can offer to
// restore it on the next start.
func (o *Orchestrator) SaveCart(c *cart.Cart) error {
	return c.SaveSnapshot(o.cartSnapshotPath)
}

// RestoreCart loads the last saved cart, or an empty one when no snapshot
// exists.
func (o *Orchestrator) RestoreCart() (*cart.Cart, error) {
	return cart.LoadSnapshot(o.cartSnapshotPath)
}

// DiscardCart removes any saved cart snapshot.
func (o *Orchestrator) DiscardCart() error {
	return cart.RemoveSnapshot(o.cartSnapshotPath)
}

// Run executes one checkout. The flow is linear: validate stock for every
// line, persist the sale as a single transaction, then clear the cart and
// emit the receipt. Context cancellation is honored up to the moment the
// persist step starts; after that the sale either commits or fails on its
// own terms.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.setState(StateValidating)

	lines := req.Cart.Lines()
	if len(lines) == 0 {
		o.setState(StateFailed)
		return nil, errors.New("cart is empty")
	}
	if req.PaymentMethod != domain.PaymentCash && req.PaymentMethod != domain.PaymentCard {
		o.setState(StateFailed)
		return nil, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}

	totals := req.Cart.Totals(o.taxRatePercent)
	if req.PaymentMethod == domain.PaymentCash && req.AmountPaidCents < totals.TotalCents {
		o.setState(StateFailed)
		return nil, fmt.Errorf("amount paid %d is less than total %d", req.AmountPaidCents, totals.TotalCents)
	}

	if err := o.validateStock(ctx, lines); err != nil {
		o.setState(StateFailed)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		o.setState(StateFailed)
		return nil, err
	}

	o.setState(StatePersisting)
	sale := buildSale(req, lines, totals)
	committed, err := o.persist(ctx, sale)
	if err != nil {
		o.setState(StateFailed)
		return nil, err
	}

	o.setState(StateCompleted)
	req.Cart.Clear()
	if err := cart.RemoveSnapshot(o.cartSnapshotPath); err != nil {
		log.Printf("[checkout] WARN: failed to remove cart snapshot: %v", err)
	}

	result := &Result{Sale: committed, ChangeCents: committed.ChangeCents}
	if o.receipts != nil {
		path, err := o.receipts.Generate(context.WithoutCancel(ctx), receiptRequest(committed, req.StaffName))
		if err != nil {
			log.Printf("[checkout] WARN: receipt generation failed for sale %d: %v", committed.ID, err)
		} else {
			result.ReceiptPath = path
		}
	}
	return result, nil
}

// validateStock is a courtesy precheck that reports every shortage at once.
// The database decrement inside CreateSale remains the authoritative guard.
func (o *Orchestrator) validateStock(ctx context.Context, lines []cart.Line) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	levels, err := o.repo.GetStockLevels(ctx, ids)
	if err != nil {
		return fmt.Errorf("stock validation: %w", err)
	}

	conflicts := make([]store.StockConflict, 0)
	for _, line := range lines {
		available, known := levels[line.ProductID]
		if !known {
			conflicts = append(conflicts, store.StockConflict{
				ProductID: line.ProductID, Name: line.Name, Requested: line.Quantity, Available: 0,
			})
			continue
		}
		if available < line.Quantity {
			conflicts = append(conflicts, store.StockConflict{
				ProductID: line.ProductID, Name: line.Name, Requested: line.Quantity, Available: available,
			})
		}
	}
	if len(conflicts) > 0 {
		return &store.StockConflictError{Conflicts: conflicts}
	}
	return nil
}

// persist submits the sale, retrying transient failures with the same
// idempotency key. Stock conflicts and validation errors are final; a replay
// that hits an already-committed key returns that sale.
func (o *Orchestrator) persist(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		committed, err := o.repo.CreateSale(ctx, sale)
		if err == nil {
			return committed, nil
		}
		var conflict *store.StockConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		if errors.Is(err, store.ErrInvalidInput) || errors.Is(err, store.ErrConstraintViolation) {
			return nil, err
		}
		lastErr = err
		log.Printf("[checkout] WARN: persist attempt %d/%d failed: %v", attempt, persistAttempts, err)
		if attempt < persistAttempts {
			time.Sleep(persistDelay)
		}
	}
	return nil, fmt.Errorf("persist sale: %w", lastErr)
}

func buildSale(req Request, lines []cart.Line, totals cart.Totals) domain.Sale {
	items := make([]domain.SaleLine, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.SaleLine{
			ProductID:         line.ProductID,
			ProductName:       line.Name,
			Quantity:          line.Quantity,
			PricePerUnitCents: line.UnitPriceCents,
			SubtotalCents:     line.UnitPriceCents * int64(line.Quantity),
		})
	}

	sale := domain.Sale{
		IdempotencyKey: xid.New("sale"),
		UserID:         req.UserID,
		StaffName:      req.StaffName,
		SubtotalCents:  totals.SubtotalCents,
		TaxCents:       totals.TaxCents,
		DiscountCents:  totals.DiscountCents,
		TotalCents:     totals.TotalCents,
		PaymentMethod:  req.PaymentMethod,
		CreatedAt:      time.Now().UTC(),
		Items:          items,
	}
	if req.PaymentMethod == domain.PaymentCash {
		sale.AmountPaidCents = req.AmountPaidCents
		sale.ChangeCents = req.AmountPaidCents - totals.TotalCents
	} else {
		sale.AmountPaidCents = totals.TotalCents
	}
	return sale
}

func receiptRequest(sale *domain.Sale, staffName string) domain.ReceiptRequest {
	lines := make([]domain.ReceiptLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, domain.ReceiptLine{
			Name:           item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.PricePerUnitCents,
		})
	}
	return domain.ReceiptRequest{
		SaleID:          sale.ID,
		Lines:           lines,
		SubtotalCents:   sale.SubtotalCents,
		TaxCents:        sale.TaxCents,
		DiscountCents:   sale.DiscountCents,
		TotalCents:      sale.TotalCents,
		PaymentMethod:   sale.PaymentMethod,
		AmountPaidCents: sale.AmountPaidCents,
		StaffName:       staffName,
		CreatedAt:       sale.CreatedAt,
	}
}
