package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
)

func TestNoopLocker(t *testing.T) {
	var l Locker = NoopLocker{}

	ok, err := l.Acquire(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok, "the noop locker always grants the lock")

	assert.NoError(t, l.Release(context.Background()))
	assert.NoError(t, l.Close())
}

func TestNewRedisLocker(t *testing.T) {
	t.Run("valid url", func(t *testing.T) {
		l, err := NewRedisLocker("redis://localhost:6379/0", "fsdash:export:lock", 45*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, l)
		assert.Equal(t, "fsdash:export:lock", l.key)
		assert.Equal(t, 45*time.Minute, l.ttl)
		assert.NoError(t, l.Close())
	})

	t.Run("ttl default", func(t *testing.T) {
		l, err := NewRedisLocker("redis://localhost:6379", "k", 0)
		require.NoError(t, err)
		assert.Equal(t, 45*time.Minute, l.ttl)
		assert.NoError(t, l.Close())
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := NewRedisLocker("not-a-redis-url", "k", time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid redis url")
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		l, err := FromConfig(&config.LockConfig{Enabled: false})
		require.NoError(t, err)
		_, isNoop := l.(NoopLocker)
		assert.True(t, isNoop)
	})

	t.Run("enabled", func(t *testing.T) {
		l, err := FromConfig(&config.LockConfig{
			Enabled:  true,
			RedisURL: "redis://localhost:6379/1",
			Key:      "fsdash:export:lock",
			TTL:      10 * time.Minute,
		})
		require.NoError(t, err)
		_, isRedis := l.(*RedisLocker)
		assert.True(t, isRedis)
		assert.NoError(t, l.Close())
	})

	t.Run("enabled with bad url", func(t *testing.T) {
		_, err := FromConfig(&config.LockConfig{Enabled: true, RedisURL: "::"})
		assert.Error(t, err)
	})
}
