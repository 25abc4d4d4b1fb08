package repository

import (
	"context"

	"github.com/user/price-tracker/internal/entity"
)

// AlertFeedRepository hands detected alerts to the notification layer.
type AlertFeedRepository interface {
	Publish(ctx context.Context, summary entity.AlertSummary) error
	// Latest returns the most recently published summary, or nil.
	Latest(ctx context.Context) (*entity.AlertSummary, error)
}
