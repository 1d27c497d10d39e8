// Package cart holds the in-progress order for one terminal session. It is
// purely in-memory arithmetic over cents; nothing here talks to the database.
// Stock figures carried on lines are advisory snapshots from the moment the
// product was scanned, the authoritative check happens at checkout.
package cart

import (
	"fmt"
	"math"
	"sync"
)

// Line is one product entry in the cart. Adding the same product again merges
// into the existing line instead of appending a duplicate.
type Line struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	StockSnapshot  int    `json:"stock_snapshot"`
}

// Totals is the cart summary for display and for the checkout request.
// Tax applies to the full subtotal; the discount is subtracted afterwards.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// InsufficientStockError is the cart-side soft guard. It only reflects the
// stock snapshot taken at scan time.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// Cart keeps lines in the order products were first added, so receipts list
// items the way they were scanned.
type Cart struct {
	mu              sync.Mutex
	lines           []*Line
	discountCents   int64
	discountPercent float64
	usePercent      bool
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) findLocked(productID int64) *Line {
	for _, line := range c.lines {
		if line.ProductID == productID {
			return line
		}
	}
	return nil
}

func (c *Cart) removeLocked(productID int64) {
	for i, line := range c.lines {
		if line.ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// AddLine merges qty into an existing line for the same product, or appends a
// new one. The merged quantity is checked against the stock snapshot; a
// failed guard leaves the cart unchanged.
func (c *Cart) AddLine(productID int64, name string, unitPriceCents int64, qty int, stockSnapshot int) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}
	if unitPriceCents < 0 {
		return fmt.Errorf("unit price must not be negative, got %d", unitPriceCents)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.findLocked(productID)

	merged := qty
	if existing != nil {
		merged += existing.Quantity
	}
	if merged > stockSnapshot {
		available := stockSnapshot
		if existing != nil {
			available = stockSnapshot - existing.Quantity
			if available < 0 {
				available = 0
			}
		}
		return &InsufficientStockError{ProductID: productID, Name: name, Requested: qty, Available: available}
	}

	if existing != nil {
		existing.Quantity = merged
		existing.UnitPriceCents = unitPriceCents
		existing.StockSnapshot = stockSnapshot
		return nil
	}
	c.lines = append(c.lines, &Line{
		ProductID:      productID,
		Name:           name,
		UnitPriceCents: unitPriceCents,
		Quantity:       qty,
		StockSnapshot:  stockSnapshot,
	})
	return nil
}

// SetQuantity replaces a line's quantity. Zero removes the line; negative
// quantities are rejected.
func (c *Cart) SetQuantity(productID int64, qty int) error {
	if qty < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", qty)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.findLocked(productID)
	if line == nil {
		return fmt.Errorf("product %d not in cart", productID)
	}
	if qty == 0 {
		c.removeLocked(productID)
		return nil
	}
	if qty > line.StockSnapshot {
		return &InsufficientStockError{ProductID: productID, Name: line.Name, Requested: qty, Available: line.StockSnapshot}
	}
	line.Quantity = qty
	return nil
}

func (c *Cart) RemoveLine(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(productID)
}

// Clear empties the cart and resets any discount.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.discountCents = 0
	c.discountPercent = 0
	c.usePercent = false
}

func (c *Cart) SetFixedDiscount(cents int64) error {
	if cents < 0 {
		return fmt.Errorf("discount must not be negative, got %d", cents)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discountCents = cents
	c.usePercent = false
	return nil
}

func (c *Cart) SetPercentDiscount(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("discount percent must be within [0, 100], got %g", percent)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discountPercent = percent
	c.usePercent = true
	return nil
}

// Lines returns the cart content in the order products were added.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linesLocked()
}

func (c *Cart) linesLocked() []Line {
	lines := make([]Line, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, *line)
	}
	return lines
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Totals computes the cart summary. The subtotal is an exact integer sum,
// tax is rounded half-up from the full subtotal, and the discount is clamped
// to [0, subtotal] so the total can never go negative.
func (c *Cart) Totals(taxRatePercent float64) Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	var subtotal int64
	for _, line := range c.lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}

	tax := int64(math.Round(float64(subtotal) * taxRatePercent / 100))

	discount := c.discountCents
	if c.usePercent {
		discount = int64(math.Round(float64(subtotal) * c.discountPercent / 100))
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		DiscountCents: discount,
		TotalCents:    subtotal + tax - discount,
	}
}
