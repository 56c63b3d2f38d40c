package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// The cron trigger and the admin endpoint share one lock instance, so
// Acquire and Release must tolerate concurrent callers.
func TestRedisRunLock_ConcurrentUse(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	lock := NewRedisRunLock(client, "shelfrank:test:lock", time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := lock.Acquire(context.Background())
			assert.False(t, acquired)
			assert.Error(t, err)
			assert.Error(t, lock.Release(context.Background()))
		}()
	}
	wg.Wait()
}
