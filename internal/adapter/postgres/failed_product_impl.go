package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/price-tracker/internal/entity"
)

// FailedProductRepoImpl provides a concrete implementation for the FailedProductRepository interface using PostgreSQL.
type FailedProductRepoImpl struct {
	db *pgxpool.Pool
}

func NewFailedProductRepo(db *pgxpool.Pool) *FailedProductRepoImpl {
	return &FailedProductRepoImpl{db: db}
}

// RecordFailure creates or updates a record for a failed product.
// It increments consecutive_failures on conflict.
func (r *FailedProductRepoImpl) RecordFailure(ctx context.Context, failed *entity.FailedProduct) error {
	query := `
		INSERT INTO failed_products (product_id, url, failure_reason, attempts, consecutive_failures, last_attempt_timestamp)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			url = EXCLUDED.url,
			failure_reason = EXCLUDED.failure_reason,
			attempts = EXCLUDED.attempts,
			consecutive_failures = failed_products.consecutive_failures + 1,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp;
	`
	_, err := r.db.Exec(ctx, query,
		failed.ProductID,
		failed.URL,
		failed.FailureReason,
		failed.Attempts,
		failed.LastAttemptTimestamp,
	)
	return err
}

func (r *FailedProductRepoImpl) List(ctx context.Context, limit int) ([]*entity.FailedProduct, error) {
	query := `
		SELECT product_id, url, failure_reason, attempts, consecutive_failures, last_attempt_timestamp
		FROM failed_products
		ORDER BY consecutive_failures DESC, last_attempt_timestamp DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failed []*entity.FailedProduct
	for rows.Next() {
		var fp entity.FailedProduct
		if err := rows.Scan(
			&fp.ProductID,
			&fp.URL,
			&fp.FailureReason,
			&fp.Attempts,
			&fp.ConsecutiveFailures,
			&fp.LastAttemptTimestamp,
		); err != nil {
			return nil, err
		}
		failed = append(failed, &fp)
	}

	return failed, rows.Err()
}

// Delete removes a failed product record, typically after a successful scrape.
func (r *FailedProductRepoImpl) Delete(ctx context.Context, productID string) error {
	query := `DELETE FROM failed_products WHERE product_id = $1;`
	_, err := r.db.Exec(ctx, query, productID)
	return err
}
