// Package receipt renders committed sales as plain-text receipt files.
package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"martpos/backend/internal/domain"
)

const receiptWidth = 40

// TextPrinter writes one .txt file per sale into a configured directory.
type TextPrinter struct {
	dir            string
	storeName      string
	footer         string
	currencySymbol string
}

func NewTextPrinter(dir string, storeName string, footer string, currencySymbol string) *TextPrinter {
	return &TextPrinter{
		dir:            dir,
		storeName:      storeName,
		footer:         footer,
		currencySymbol: currencySymbol,
	}
}

// Generate renders the receipt and returns the path of the written file.
func (p *TextPrinter) Generate(ctx context.Context, req domain.ReceiptRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}

	name := fmt.Sprintf("receipt_%d_%s.txt", req.SaleID, req.CreatedAt.UTC().Format("20060102_150405"))
	path := filepath.Join(p.dir, name)
	if err := os.WriteFile(path, []byte(p.render(req)), 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}

func (p *TextPrinter) render(req domain.ReceiptRequest) string {
	var b strings.Builder
	rule := strings.Repeat("=", receiptWidth)
	thinRule := strings.Repeat("-", receiptWidth)

	b.WriteString(center(p.storeName) + "\n")
	b.WriteString(rule + "\n")
	b.WriteString(fmt.Sprintf("Sale #%d\n", req.SaleID))
	b.WriteString("Date:  " + req.CreatedAt.UTC().Format("2006-01-02 15:04:05") + "\n")
	if req.StaffName != "" {
		b.WriteString("Staff: " + req.StaffName + "\n")
	}
	b.WriteString(thinRule + "\n")

	for _, line := range req.Lines {
		b.WriteString(line.Name + "\n")
		amount := p.money(line.UnitPriceCents * int64(line.Quantity))
		detail := fmt.Sprintf("  %d x %s", line.Quantity, p.money(line.UnitPriceCents))
		b.WriteString(padBetween(detail, amount) + "\n")
	}

	b.WriteString(thinRule + "\n")
	b.WriteString(padBetween("Subtotal", p.money(req.SubtotalCents)) + "\n")
	b.WriteString(padBetween("Tax", p.money(req.TaxCents)) + "\n")
	if req.DiscountCents > 0 {
		b.WriteString(padBetween("Discount", "-"+p.money(req.DiscountCents)) + "\n")
	}
	b.WriteString(padBetween("TOTAL", p.money(req.TotalCents)) + "\n")
	b.WriteString(thinRule + "\n")
	b.WriteString(padBetween("Paid ("+req.PaymentMethod+")", p.money(req.AmountPaidCents)) + "\n")
	if change := req.AmountPaidCents - req.TotalCents; change > 0 {
		b.WriteString(padBetween("Change", p.money(change)) + "\n")
	}
	b.WriteString(rule + "\n")
	if p.footer != "" {
		b.WriteString(center(p.footer) + "\n")
	}
	return b.String()
}

func (p *TextPrinter) money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, p.currencySymbol, cents/100, cents%100)
}

func center(s string) string {
	width := utf8.RuneCountInString(s)
	if width >= receiptWidth {
		return s
	}
	pad := (receiptWidth - width) / 2
	return strings.Repeat(" ", pad) + s
}

func padBetween(left string, right string) string {
	gap := receiptWidth - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
