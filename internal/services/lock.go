package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRefreshInProgress is returned when a refresh run cannot take the run
// lock because another run holds it.
var ErrRefreshInProgress = errors.New("recommendation refresh already in progress")

// RunLock guards against overlapping batch refresh runs. The scheduler may
// fire while a slow run is still working; the lock makes the second
// invocation a no-op instead of interleaving cache writes.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisRunLock implements RunLock with a SET NX EX key. The TTL bounds how
// long a crashed run can block its successors. One instance is shared by
// the cron trigger and the admin endpoint, so token access is guarded.
type RedisRunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisRunLock(client *redis.Client, key string, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (l *RedisRunLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if acquired {
		// Overwriting the token on a failed attempt would orphan the
		// holder's release.
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return acquired, err
}

// releaseScript deletes the lock only when this run still owns it, so a
// run that outlived its TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisRunLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.mu.Unlock()
	return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
