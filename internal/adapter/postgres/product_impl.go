package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/errs"
)

// ProductRepoImpl reads product master data and the watchlist.
type ProductRepoImpl struct {
	db *pgxpool.Pool
}

func NewProductRepo(db *pgxpool.Pool) *ProductRepoImpl {
	return &ProductRepoImpl{db: db}
}

// ListTracked returns every actively watched product once, ordered by when
// it was first tracked.
func (r *ProductRepoImpl) ListTracked(ctx context.Context) ([]string, error) {
	query := `
		SELECT product_id
		FROM tracked_products
		WHERE is_active
		GROUP BY product_id
		ORDER BY MIN(created_at), product_id;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errs.Wrap(err, "query tracked products")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ProductRepoImpl) FindByID(ctx context.Context, productID string) (*entity.ProductMaster, error) {
	query := `
		SELECT product_id, name, brand, image_url, url
		FROM products
		WHERE product_id = $1;
	`
	var m entity.ProductMaster
	err := r.db.QueryRow(ctx, query, productID).Scan(&m.ProductID, &m.Name, &m.Brand, &m.ImageURL, &m.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "find product")
	}
	return &m, nil
}
