package usecase

import (
	"context"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/internal/repository"
	"github.com/user/price-tracker/pkg/errs"
)

const (
	DefaultFailedProductsLimit = 50
	MaxFailedProductsLimit     = 500
)

// CatalogService answers operator lookups on tracked products.
type CatalogService interface {
	Product(ctx context.Context, productID string) (*entity.ProductMaster, error)
	FailedProducts(ctx context.Context, limit int) ([]*entity.FailedProduct, error)
}

type Catalog struct {
	products repository.ProductRepository
	failed   repository.FailedProductRepository
	rule     entity.IdentifierRule
}

func NewCatalog(products repository.ProductRepository, failed repository.FailedProductRepository, rule entity.IdentifierRule) *Catalog {
	return &Catalog{products: products, failed: failed, rule: rule}
}

// Product returns the master record, or nil when the product was never scraped.
func (c *Catalog) Product(ctx context.Context, productID string) (*entity.ProductMaster, error) {
	id := c.rule.Normalize(productID)
	if !c.rule.Valid(id) {
		return nil, errs.Mark(errs.Newf("malformed product id %q", productID), errs.ErrInvalidInput)
	}
	return c.products.FindByID(ctx, id)
}

// FailedProducts lists the most persistently failing products first.
func (c *Catalog) FailedProducts(ctx context.Context, limit int) ([]*entity.FailedProduct, error) {
	switch {
	case limit <= 0:
		limit = DefaultFailedProductsLimit
	case limit > MaxFailedProductsLimit:
		limit = MaxFailedProductsLimit
	}
	return c.failed.List(ctx, limit)
}
