package repository

import (
	"context"
	"time"

	"github.com/user/price-tracker/internal/entity"
)

// SinkRepository is the persistence boundary of the pipeline.
type SinkRepository interface {
	// Load writes accepted snapshots into price history and merges their
	// stable attributes into product master data, all or nothing. Writing a
	// snapshot whose (product, seller, day) key already exists replaces it.
	Load(ctx context.Context, snapshots []entity.ProductSnapshot) error
	// PricesForDay returns the recorded price of every (product, seller) pair
	// on the given UTC day.
	PricesForDay(ctx context.Context, day time.Time) ([]entity.PricePoint, error)
}

// ProductRepository reads product master data.
type ProductRepository interface {
	// ListTracked returns watchlisted product identifiers in stable order.
	ListTracked(ctx context.Context) ([]string, error)
	// FindByID returns the master record, or nil when the product is unknown.
	FindByID(ctx context.Context, productID string) (*entity.ProductMaster, error)
}

// AlertRepository stores detected alerts. Saving the same day twice
// replaces that day's alerts per (product, seller).
type AlertRepository interface {
	SaveAlerts(ctx context.Context, day time.Time, alerts []entity.PriceAlert) error
}
