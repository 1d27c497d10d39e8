package receipt

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"martpos/backend/internal/domain"
)

func sampleRequest() domain.ReceiptRequest {
	return domain.ReceiptRequest{
		SaleID: 42,
		Lines: []domain.ReceiptLine{
			{Name: "Green Tea Box", Quantity: 2, UnitPriceCents: 399},
			{Name: "Masala Chai Blend", Quantity: 1, UnitPriceCents: 499},
		},
		SubtotalCents:   1297,
		TaxCents:        130,
		DiscountCents:   100,
		TotalCents:      1327,
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 1500,
		StaffName:       "admin",
		CreatedAt:       time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
	}
}

func TestGenerateWritesReceiptFile(t *testing.T) {
	printer := NewTextPrinter(t.TempDir(), "Corner Tea House", "Thank you!", "$")

	path, err := printer.Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	content := string(raw)

	for _, want := range []string{
		"Corner Tea House",
		"Sale #42",
		"Staff: admin",
		"Green Tea Box",
		"2 x $3.99",
		"$12.97",
		"-$1.00",
		"$13.27",
		"Paid (cash)",
		"$1.73",
		"Thank you!",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("receipt missing %q:\n%s", want, content)
		}
	}
}

func TestLayoutCountsRunesNotBytes(t *testing.T) {
	printer := NewTextPrinter(t.TempDir(), "Čajovňa U Zeleného Stromu", "Ďakujeme!", "€")

	req := sampleRequest()
	req.Lines = []domain.ReceiptLine{
		{Name: "Grüner Tee", Quantity: 2, UnitPriceCents: 399},
	}

	path, err := printer.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}

	for _, line := range strings.Split(string(raw), "\n") {
		if width := utf8.RuneCountInString(line); width > receiptWidth {
			t.Fatalf("line wider than %d columns: %q (%d runes)", receiptWidth, line, width)
		}
		// Amount lines are padded to the full width regardless of the
		// currency symbol's byte length.
		if strings.HasPrefix(line, "Subtotal") || strings.HasPrefix(line, "TOTAL") {
			if width := utf8.RuneCountInString(line); width != receiptWidth {
				t.Fatalf("expected %d-column line, got %d runes: %q", receiptWidth, width, line)
			}
		}
	}
}

func TestGenerateHonorsCanceledContext(t *testing.T) {
	printer := NewTextPrinter(t.TempDir(), "Corner Tea House", "", "$")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := printer.Generate(ctx, sampleRequest()); err == nil {
		t.Fatalf("expected canceled context to be reported")
	}
}

func TestGenerateOmitsOptionalSections(t *testing.T) {
	printer := NewTextPrinter(t.TempDir(), "Corner Tea House", "", "$")

	req := sampleRequest()
	req.DiscountCents = 0
	req.TotalCents = 1427
	req.AmountPaidCents = 1427
	req.StaffName = ""

	path, err := printer.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	content := string(raw)
	if strings.Contains(content, "Discount") {
		t.Fatalf("zero discount must not appear:\n%s", content)
	}
	if strings.Contains(content, "Change") {
		t.Fatalf("exact payment must not print change:\n%s", content)
	}
	if strings.Contains(content, "Staff:") {
		t.Fatalf("empty staff name must not appear:\n%s", content)
	}
}
