package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/repository"
	"github.com/user/price-tracker/pkg/errs"
)

// ProductSource resolves the ordered list of product identifiers for a run.
type ProductSource struct {
	explicit func() ([]string, error)
	products repository.ProductRepository
	rule     entity.IdentifierRule
	logger   *zap.Logger
}

// NewProductSource prefers identifiers from explicit (config list or file)
// and falls back to the watchlist when it yields none. explicit may be nil.
func NewProductSource(
	explicit func() ([]string, error),
	products repository.ProductRepository,
	rule entity.IdentifierRule,
	logger *zap.Logger,
) *ProductSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductSource{explicit: explicit, products: products, rule: rule, logger: logger}
}

// List returns valid, de-duplicated identifiers in their original order.
func (s *ProductSource) List(ctx context.Context) ([]string, error) {
	var (
		raw    []string
		origin = "config"
	)
	if s.explicit != nil {
		ids, err := s.explicit()
		if err != nil {
			return nil, errs.Wrap(err, "read configured products")
		}
		raw = ids
	}
	if len(raw) == 0 && s.products != nil {
		origin = "watchlist"
		ids, err := s.products.ListTracked(ctx)
		if err != nil {
			return nil, errs.Wrap(err, "list tracked products")
		}
		raw = ids
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = s.rule.Normalize(id)
		if !s.rule.Valid(id) {
			s.logger.Warn("Skipping malformed product id", zap.String("product_id", id), zap.String("origin", origin))
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, errs.Mark(errs.Newf("no valid product ids from %s", origin), errs.ErrNoProducts)
	}
	s.logger.Info("Products loaded", zap.Int("count", len(ids)), zap.String("origin", origin))
	return ids, nil
}
