package repository

import (
	"context"

	"github.com/user/price-tracker/internal/entity"
)

// PageTransport retrieves the markup of one product page. Implementations
// are single-shot: retries and backoff belong to the fetcher that owns them.
type PageTransport interface {
	Fetch(ctx context.Context, url, countryCode string) (*entity.RawPage, error)
}
