package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/EiadSorour/Ticketr/pkg/redis"
)

const (
	lockKeyPrefix   = "lock:event:"
	lockTTL         = 10 * time.Second
	lockRetryDelay  = 50 * time.Millisecond
	lockReleaseSafe = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`
)

// RedisLocker is a Locker backed by Redis SET NX with a TTL, for
// deployments running more than one instance. The TTL bounds how long
// a crashed holder can wedge an event's queue.
type RedisLocker struct {
	client *pkgredis.Client
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *pkgredis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

var _ Locker = (*RedisLocker)(nil)

// Acquire polls SET NX until the lock is taken or ctx is done. Release
// compares the lock token before deleting, so an expired holder cannot
// release a successor's lock.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				l.client.Eval(releaseCtx, lockReleaseSafe, []string{redisKey}, token)
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}
