package repository

import (
	"context"

	"github.com/user/price-tracker/internal/entity"
)

// FailedProductRepository tracks products whose fetch keeps failing.
type FailedProductRepository interface {
	// RecordFailure creates or updates the record, bumping the consecutive failure count.
	RecordFailure(ctx context.Context, failed *entity.FailedProduct) error
	// List returns the most persistently failing products first.
	List(ctx context.Context, limit int) ([]*entity.FailedProduct, error)
	// Delete removes the record, typically after a successful scrape.
	Delete(ctx context.Context, productID string) error
}
