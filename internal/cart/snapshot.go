package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the on-disk form of an unfinished cart. It survives process
// crashes so a terminal can offer to restore the order on the next start.
type Snapshot struct {
	SavedAt         time.Time `json:"saved_at"`
	Lines           []Line    `json:"lines"`
	DiscountCents   int64     `json:"discount_cents,omitempty"`
	DiscountPercent float64   `json:"discount_percent,omitempty"`
	UsePercent      bool      `json:"use_percent,omitempty"`
}

// SaveSnapshot writes the cart state to path atomically (write temp file,
// then rename). An empty cart removes the snapshot instead.
func (c *Cart) SaveSnapshot(path string) error {
	c.mu.Lock()
	snap := Snapshot{
		SavedAt:         time.Now().UTC(),
		Lines:           c.linesLocked(),
		DiscountCents:   c.discountCents,
		DiscountPercent: c.discountPercent,
		UsePercent:      c.usePercent,
	}
	c.mu.Unlock()

	if len(snap.Lines) == 0 {
		return RemoveSnapshot(path)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cart snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cart snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cart snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores a saved cart from path. A missing file yields an
// empty cart and no error; a corrupt file is reported so the caller can
// decide whether to discard it.
func LoadSnapshot(path string) (*Cart, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}

	c := New()
	for _, line := range snap.Lines {
		if line.Quantity < 1 || c.findLocked(line.ProductID) != nil {
			continue
		}
		c.lines = append(c.lines, &Line{
			ProductID:      line.ProductID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			StockSnapshot:  line.StockSnapshot,
		})
	}
	c.discountCents = snap.DiscountCents
	c.discountPercent = snap.DiscountPercent
	c.usePercent = snap.UsePercent
	return c, nil
}

// RemoveSnapshot deletes the snapshot file. A missing file is not an error.
func RemoveSnapshot(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
