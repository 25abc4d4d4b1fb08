package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deletes the lock only while it still holds our token, so a run whose lock
// expired can't release the lock of the run that replaced it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLockRepoImpl is a single-key Redis lock guarding pipeline runs.
type RunLockRepoImpl struct {
	client *redis.Client
}

func NewRunLockRepo(client *redis.Client) *RunLockRepoImpl {
	return &RunLockRepoImpl{client: client}
}

// Acquire sets the lock key with NX so only one holder can exist.
func (r *RunLockRepoImpl) Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, runLockKey, token, ttl).Result()
}

func (r *RunLockRepoImpl) Release(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, r.client, []string{runLockKey}, token).Err()
}
