package cart

import (
	"errors"
	"math/rand"
	"testing"
)

func TestTotalsTaxOnFullSubtotal(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Green Tea Box", 399, 2, 100); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.AddLine(2, "Masala Chai Blend", 499, 1, 100); err != nil {
		t.Fatalf("add line: %v", err)
	}

	totals := c.Totals(10)
	if totals.SubtotalCents != 1297 {
		t.Fatalf("expected subtotal 1297, got %d", totals.SubtotalCents)
	}
	if totals.TaxCents != 130 {
		t.Fatalf("expected tax 130, got %d", totals.TaxCents)
	}
	if totals.TotalCents != 1427 {
		t.Fatalf("expected total 1427, got %d", totals.TotalCents)
	}
}

func TestAddLineMergesQuantities(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Honey Jar 500g", 899, 2, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.AddLine(1, "Honey Jar 500g", 899, 3, 10); err != nil {
		t.Fatalf("merge line: %v", err)
	}

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", lines[0].Quantity)
	}
}

func TestAddLineRejectsOverMergedStock(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Butter Cookies", 649, 4, 5); err != nil {
		t.Fatalf("add line: %v", err)
	}

	err := c.AddLine(1, "Butter Cookies", 649, 2, 5)
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 1 {
		t.Fatalf("expected 1 available after existing line, got %d", stockErr.Available)
	}
	if got := c.Lines()[0].Quantity; got != 4 {
		t.Fatalf("failed add must not change the cart, quantity is %d", got)
	}
}

func TestAddLineRejectsNonPositiveQuantity(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Paper Napkins", 249, 0, 10); err == nil {
		t.Fatalf("expected zero quantity to be rejected")
	}
	if err := c.AddLine(1, "Paper Napkins", 249, -3, 10); err == nil {
		t.Fatalf("expected negative quantity to be rejected")
	}
}

func TestLinesKeepAddOrder(t *testing.T) {
	c := New()
	if err := c.AddLine(7, "Ceramic Mug", 1299, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.AddLine(2, "Green Tea Box", 399, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.AddLine(5, "Honey Jar 500g", 899, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	// Merging into an existing line must not move it.
	if err := c.AddLine(2, "Green Tea Box", 399, 2, 10); err != nil {
		t.Fatalf("merge line: %v", err)
	}

	want := []int64{7, 2, 5}
	lines := c.Lines()
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, id := range want {
		if lines[i].ProductID != id {
			t.Fatalf("expected product %d at position %d, got %d", id, i, lines[i].ProductID)
		}
	}

	c.RemoveLine(2)
	if err := c.AddLine(2, "Green Tea Box", 399, 1, 10); err != nil {
		t.Fatalf("re-add line: %v", err)
	}
	lines = c.Lines()
	if lines[len(lines)-1].ProductID != 2 {
		t.Fatalf("re-added product must go to the end, got order %v", lines)
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Ceramic Mug", 1299, 2, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetQuantity(1, 0); err != nil {
		t.Fatalf("set quantity zero: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cart after zero quantity, got %d lines", c.Len())
	}
}

func TestSetQuantityRejectsNegative(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Ceramic Mug", 1299, 2, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetQuantity(1, -1); err == nil {
		t.Fatalf("expected negative quantity to be rejected")
	}
	if got := c.Lines()[0].Quantity; got != 2 {
		t.Fatalf("failed update must not change the line, quantity is %d", got)
	}
}

func TestDiscountClampedToSubtotal(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Green Tea Box", 399, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetFixedDiscount(100000); err != nil {
		t.Fatalf("set discount: %v", err)
	}

	totals := c.Totals(10)
	if totals.DiscountCents != totals.SubtotalCents {
		t.Fatalf("expected discount clamped to subtotal %d, got %d", totals.SubtotalCents, totals.DiscountCents)
	}
	if totals.TotalCents != totals.TaxCents {
		t.Fatalf("fully discounted cart should still owe tax %d, got total %d", totals.TaxCents, totals.TotalCents)
	}
	if totals.TotalCents < 0 {
		t.Fatalf("total must never be negative, got %d", totals.TotalCents)
	}
}

func TestPercentDiscount(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Honey Jar 500g", 1000, 2, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetPercentDiscount(25); err != nil {
		t.Fatalf("set percent discount: %v", err)
	}

	totals := c.Totals(0)
	if totals.DiscountCents != 500 {
		t.Fatalf("expected 25%% of 2000 = 500, got %d", totals.DiscountCents)
	}
	if totals.TotalCents != 1500 {
		t.Fatalf("expected total 1500, got %d", totals.TotalCents)
	}

	if err := c.SetPercentDiscount(101); err == nil {
		t.Fatalf("expected discount over 100%% to be rejected")
	}
}

func TestClearResetsDiscount(t *testing.T) {
	c := New()
	if err := c.AddLine(1, "Green Tea Box", 399, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetFixedDiscount(100); err != nil {
		t.Fatalf("set discount: %v", err)
	}
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected empty cart after clear")
	}
	if err := c.AddLine(2, "Masala Chai Blend", 499, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if totals := c.Totals(0); totals.DiscountCents != 0 {
		t.Fatalf("clear must reset the discount, got %d", totals.DiscountCents)
	}
}

func TestSubtotalStaysExactUnderManyOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := New()

	for i := 0; i < 1000; i++ {
		productID := int64(rng.Intn(50) + 1)
		switch rng.Intn(3) {
		case 0:
			price := int64(rng.Intn(5000) + 1)
			_ = c.AddLine(productID, "item", price, rng.Intn(5)+1, 1_000_000)
		case 1:
			_ = c.SetQuantity(productID, rng.Intn(10))
		case 2:
			c.RemoveLine(productID)
		}
	}

	var expected int64
	for _, line := range c.Lines() {
		expected += line.UnitPriceCents * int64(line.Quantity)
	}
	if got := c.Totals(0).SubtotalCents; got != expected {
		t.Fatalf("expected subtotal %d, got %d", expected, got)
	}
}
