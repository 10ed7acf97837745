package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript atomically deletes the lock key only if it still holds the
// token this acquisition wrote, so a lock that expired and was re-acquired
// by another holder is never released out from under them.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// RedisLocker implements Locker as a Redis SET NX PX advisory lock (spec.md
// §7 domain stack), the cross-process/cross-host alternative to FSStore's
// default flock-based lock.
type RedisLocker struct {
	Client *redis.Client
	// TTL bounds how long a lock is held before it expires unreleased,
	// guarding against a crashed holder wedging a task forever. Default 30s.
	TTL time.Duration
	// RetryDelay is how long Acquire sleeps between contended attempts.
	// Default 50ms.
	RetryDelay time.Duration
	// Timeout bounds how long Acquire retries before giving up. Default 10s.
	Timeout time.Duration
}

func (r *RedisLocker) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return 30 * time.Second
}

func (r *RedisLocker) retryDelay() time.Duration {
	if r.RetryDelay > 0 {
		return r.RetryDelay
	}
	return 50 * time.Millisecond
}

func (r *RedisLocker) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 10 * time.Second
}

func (r *RedisLocker) key(id string) string {
	return fmt.Sprintf("codeforge/lock/%s", id)
}

// Acquire blocks until the lock for id is held or Timeout elapses.
func (r *RedisLocker) Acquire(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	key := r.key(id)

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	for {
		ok, err := r.Client.SetNX(ctx, key, token, r.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("task: redis lock %s: %w", id, err)
		}
		if ok {
			release := func() {
				_ = r.Client.Eval(context.Background(), unlockScript, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("task: acquire lock for %s: %w", id, ctx.Err())
		case <-time.After(r.retryDelay()):
		}
	}
}
