package cache

import (
	"context"
	"time"

	"martpos/backend/internal/domain"
)

// ProductCache stores barcode lookup results. Scans at the register hit the
// same handful of products over and over, so a short TTL keeps the hot path
// off the database without risking stale prices for long.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*domain.Product, bool, error)
	Set(ctx context.Context, barcode string, product *domain.Product, ttl time.Duration) error
	Delete(ctx context.Context, barcode string) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ string, _ *domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Delete(_ context.Context, _ string) error {
	return nil
}
