package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/user/price-tracker/pkg/errs"
)

const keyPrefix = "pricetracker:"

const (
	runLockKey      = keyPrefix + "run:lock"
	latestReportKey = keyPrefix + "runs:latest"
	alertFeedKey    = keyPrefix + "alerts:feed"
	latestAlertsKey = keyPrefix + "alerts:latest"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errs.Wrap(err, "ping redis")
	}
	return client, nil
}
