package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/price-tracker/internal/entity"
)

const feedLength = 100

// AlertFeedRepoImpl publishes alert summaries: the latest one under a fixed
// key and a bounded history in a Redis list, newest first.
type AlertFeedRepoImpl struct {
	client *redis.Client
}

func NewAlertFeedRepo(client *redis.Client) *AlertFeedRepoImpl {
	return &AlertFeedRepoImpl{client: client}
}

func (r *AlertFeedRepoImpl) Publish(ctx context.Context, summary entity.AlertSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, latestAlertsKey, payload, 0)
		pipe.LPush(ctx, alertFeedKey, payload)
		pipe.LTrim(ctx, alertFeedKey, 0, feedLength-1)
		return nil
	})
	return err
}

func (r *AlertFeedRepoImpl) Latest(ctx context.Context) (*entity.AlertSummary, error) {
	payload, err := r.client.Get(ctx, latestAlertsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary entity.AlertSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
