package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/price-tracker/pkg/errs"
)

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errs.Wrap(err, "unable to connect to database")
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(err, "ping database")
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS products (
  product_id      text PRIMARY KEY,
  name            text,
  brand           text,
  image_url       text,
  url             text,
  last_checked_at timestamptz,
  created_at      timestamptz NOT NULL DEFAULT now(),
  updated_at      timestamptz NOT NULL DEFAULT now()
);

-- Watchlist entries; a product may be tracked by several users.
CREATE TABLE IF NOT EXISTS tracked_products (
  id         bigserial PRIMARY KEY,
  user_id    text,
  product_id text NOT NULL,
  is_active  boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS tracked_products_product_idx ON tracked_products (product_id);

-- One logical row per (product, seller, day); re-loads replace it.
CREATE TABLE IF NOT EXISTS price_history (
  product_id     text NOT NULL,
  seller_id      text NOT NULL,
  scraped_day    date NOT NULL,
  price          numeric(12,2) NOT NULL,
  original_price numeric(12,2),
  discount_pct   numeric(5,1),
  currency       text NOT NULL,
  in_stock       boolean NOT NULL,
  source_url     text,
  scraped_at     timestamptz NOT NULL,
  PRIMARY KEY (product_id, seller_id, scraped_day)
);

CREATE INDEX IF NOT EXISTS price_history_day_idx ON price_history (scraped_day);

CREATE TABLE IF NOT EXISTS price_alerts (
  product_id     text NOT NULL,
  seller_id      text NOT NULL,
  detected_day   date NOT NULL,
  previous_price numeric(12,2) NOT NULL,
  current_price  numeric(12,2) NOT NULL,
  change_amount  numeric(12,2) NOT NULL,
  change_pct     numeric(8,2) NOT NULL,
  alert_type     text NOT NULL,
  detected_at    timestamptz NOT NULL,
  is_read        boolean NOT NULL DEFAULT false,
  PRIMARY KEY (product_id, seller_id, detected_day)
);

CREATE TABLE IF NOT EXISTS failed_products (
  product_id             text PRIMARY KEY,
  url                    text NOT NULL,
  failure_reason         text NOT NULL,
  attempts               int NOT NULL,
  consecutive_failures   int NOT NULL DEFAULT 1,
  last_attempt_timestamp timestamptz NOT NULL
);
`

// EnsureSchema creates the tables the pipeline reads and writes if they are
// missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return errs.Wrap(err, "ensure schema")
	}
	return nil
}
