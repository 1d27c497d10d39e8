package cart

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved_cart.json")

	c := New()
	if err := c.AddLine(9, "Masala Chai Blend", 499, 1, 100); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.AddLine(1, "Green Tea Box", 399, 2, 100); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetFixedDiscount(50); err != nil {
		t.Fatalf("set discount: %v", err)
	}
	if err := c.SaveSnapshot(path); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	restored, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	lines := restored.Lines()
	if len(lines) != 2 || lines[1].Quantity != 2 || lines[1].UnitPriceCents != 399 {
		t.Fatalf("unexpected restored lines: %+v", lines)
	}
	if lines[0].ProductID != 9 || lines[1].ProductID != 1 {
		t.Fatalf("restore must keep add order, got %+v", lines)
	}
	if totals := restored.Totals(0); totals.DiscountCents != 50 {
		t.Fatalf("expected restored discount 50, got %d", totals.DiscountCents)
	}
}

func TestLoadSnapshotMissingFileYieldsEmptyCart(t *testing.T) {
	c, err := LoadSnapshot(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("missing snapshot must not be an error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cart, got %d lines", c.Len())
	}
}

func TestLoadSnapshotCorruptFileReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved_cart.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Fatalf("expected corrupt snapshot to be reported")
	}
}

func TestSaveSnapshotEmptyCartRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved_cart.json")

	c := New()
	if err := c.AddLine(1, "Green Tea Box", 399, 1, 10); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SaveSnapshot(path); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	c.Clear()
	if err := c.SaveSnapshot(path); err != nil {
		t.Fatalf("save empty snapshot: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot file removed for empty cart")
	}
}
