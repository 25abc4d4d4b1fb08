package repository

import (
	"context"
	"time"

	"github.com/user/price-tracker/internal/entity"
)

// RunLockRepository guarantees at most one active pipeline run.
type RunLockRepository interface {
	// Acquire takes the lock for token if it is free. The lock expires after ttl
	// so a crashed run can't block the next one forever.
	Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error)
	// Release frees the lock only if token still owns it.
	Release(ctx context.Context, token string) error
}

// RunStateRepository keeps the latest run report for operators.
type RunStateRepository interface {
	SaveReport(ctx context.Context, report *entity.RunReport) error
	// LatestReport returns nil when no run has been recorded yet.
	LatestReport(ctx context.Context) (*entity.RunReport, error)
}
