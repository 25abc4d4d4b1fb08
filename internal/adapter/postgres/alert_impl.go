package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/errs"
)

// AlertRepoImpl stores detected alerts, one row per pair and day.
type AlertRepoImpl struct {
	db *pgxpool.Pool
}

func NewAlertRepo(db *pgxpool.Pool) *AlertRepoImpl {
	return &AlertRepoImpl{db: db}
}

func (r *AlertRepoImpl) SaveAlerts(ctx context.Context, day time.Time, alerts []entity.PriceAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	query := `
		INSERT INTO price_alerts (product_id, seller_id, detected_day, previous_price, current_price, change_amount, change_pct, alert_type, detected_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)
		ON CONFLICT (product_id, seller_id, detected_day) DO UPDATE SET
			previous_price = EXCLUDED.previous_price,
			current_price = EXCLUDED.current_price,
			change_amount = EXCLUDED.change_amount,
			change_pct = EXCLUDED.change_pct,
			alert_type = EXCLUDED.alert_type,
			detected_at = EXCLUDED.detected_at;
	`

	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(query,
			a.ProductID,
			a.SellerID,
			entity.TruncateDay(day),
			a.PreviousPrice.String(),
			a.CurrentPrice.String(),
			a.ChangeAmount.String(),
			a.ChangePct.String(),
			string(a.AlertType),
			a.DetectedAt,
		)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return errs.Wrap(err, "save alerts")
	}
	return nil
}
