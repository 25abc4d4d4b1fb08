package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/price-tracker/internal/entity"
)

// RunStateRepoImpl keeps the latest run report as a JSON string.
type RunStateRepoImpl struct {
	client *redis.Client
}

func NewRunStateRepo(client *redis.Client) *RunStateRepoImpl {
	return &RunStateRepoImpl{client: client}
}

func (r *RunStateRepoImpl) SaveReport(ctx context.Context, report *entity.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, latestReportKey, payload, 0).Err()
}

func (r *RunStateRepoImpl) LatestReport(ctx context.Context) (*entity.RunReport, error) {
	payload, err := r.client.Get(ctx, latestReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var report entity.RunReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
