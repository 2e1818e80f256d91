package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

var _ Locker = (*redisLocker)(nil)

func TestWithLock_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	called := false
	err := NewRedisLocker(client, time.Second).WithLock(context.Background(), "calendar-clock", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
}
