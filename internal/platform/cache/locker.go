package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker provides best-effort mutual exclusion across processes.
type Locker struct {
	client redis.UniversalClient
}

// NewLocker wraps a redis client.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// TryLock acquires key for ttl. ok is false when another holder owns it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("platform/cache: lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock = func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}
