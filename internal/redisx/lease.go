package redisx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compare-and-delete so a slow pass never releases a lease that has
// expired and been re-acquired by another runner.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lease serializes allocation passes per post via SET NX with a TTL.
type Lease struct {
	R *redis.Client
}

// Acquire returns ok=false when another pass holds the lease. On success
// the returned release func frees the lease; it is safe to call with a
// fresh context during shutdown.
func (l *Lease) Acquire(ctx context.Context, postID string) (release func(context.Context), ok bool, err error) {
	key := fmt.Sprintf(KeyPassLease, postID)
	token := uuid.NewString()

	ok, err = l.R.SetNX(ctx, key, token, TTLPassLease).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
	}, true, nil
}
