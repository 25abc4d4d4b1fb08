package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/errs"
)

const upsertHistoryQuery = `
	INSERT INTO price_history (product_id, seller_id, scraped_day, price, original_price, discount_pct, currency, in_stock, source_url, scraped_at)
	VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10)
	ON CONFLICT (product_id, seller_id, scraped_day) DO UPDATE SET
		price = EXCLUDED.price,
		original_price = EXCLUDED.original_price,
		discount_pct = EXCLUDED.discount_pct,
		currency = EXCLUDED.currency,
		in_stock = EXCLUDED.in_stock,
		source_url = EXCLUDED.source_url,
		scraped_at = EXCLUDED.scraped_at;
`

// Incoming NULLs keep whatever was known before.
const upsertProductQuery = `
	INSERT INTO products (product_id, name, brand, image_url, url, last_checked_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (product_id) DO UPDATE SET
		name = COALESCE(EXCLUDED.name, products.name),
		brand = COALESCE(EXCLUDED.brand, products.brand),
		image_url = COALESCE(EXCLUDED.image_url, products.image_url),
		url = COALESCE(EXCLUDED.url, products.url),
		last_checked_at = EXCLUDED.last_checked_at,
		updated_at = NOW();
`

// SinkRepoImpl writes price history and product master data to PostgreSQL.
type SinkRepoImpl struct {
	db *pgxpool.Pool
}

func NewSinkRepo(db *pgxpool.Pool) *SinkRepoImpl {
	return &SinkRepoImpl{db: db}
}

// Load writes all snapshots within a single transaction.
func (r *SinkRepoImpl) Load(ctx context.Context, snapshots []entity.ProductSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errs.Wrap(err, "begin load")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(upsertHistoryQuery,
			s.ProductID(),
			s.SellerID(),
			s.Day(),
			s.Price().String(),
			optionalDecimal(s.OriginalPrice()),
			optionalDecimal(s.DiscountPct()),
			s.Currency(),
			s.InStock(),
			s.SourceURL(),
			s.ScrapedAt(),
		)

		m := entity.ProductMasterFromSnapshot(s)
		batch.Queue(upsertProductQuery, m.ProductID, m.Name, m.Brand, m.ImageURL, m.URL, s.ScrapedAt())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errs.Wrap(err, "write snapshots")
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(err, "commit load")
	}
	return nil
}

func (r *SinkRepoImpl) PricesForDay(ctx context.Context, day time.Time) ([]entity.PricePoint, error) {
	query := `
		SELECT product_id, seller_id, price::text
		FROM price_history
		WHERE scraped_day = $1
		ORDER BY product_id, seller_id;
	`
	rows, err := r.db.Query(ctx, query, entity.TruncateDay(day))
	if err != nil {
		return nil, errs.Wrap(err, "query prices")
	}
	defer rows.Close()

	var points []entity.PricePoint
	for rows.Next() {
		var p entity.PricePoint
		var price string
		if err := rows.Scan(&p.ProductID, &p.SellerID, &price); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errs.Wrapf(err, "parse price of %s", p.ProductID)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func optionalDecimal(d decimal.Decimal, ok bool) *string {
	if !ok {
		return nil
	}
	s := d.String()
	return &s
}
