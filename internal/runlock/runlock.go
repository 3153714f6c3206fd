// Package runlock guards scheduled exports against overlapping runs. When
// two replicas of the scheduler are deployed, only the one holding the lock
// exports; the other skips the slot and tries again next time.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
)

// Locker serializes export runs across scheduler instances.
type Locker interface {
	// Acquire takes the lock. It returns false when another instance
	// already holds it.
	Acquire(ctx context.Context) (bool, error)

	// Release frees the lock so the next slot can run anywhere.
	Release(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// RedisLocker implements Locker with a single SET NX key. The TTL covers a
// crashed holder: the lock expires on its own and the next slot proceeds.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker connects to the Redis instance in the URL and prepares the
// lock key.
func NewRedisLocker(url, key string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 45 * time.Minute
	}
	return &RedisLocker{
		client: redis.NewClient(opts),
		key:    key,
		ttl:    ttl,
	}, nil
}

// Acquire sets the lock key if nobody else holds it.
func (l *RedisLocker) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Release deletes the lock key.
func (l *RedisLocker) Release(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// NoopLocker always grants the lock. Used when locking is disabled, which is
// the right setting for a single-instance deployment.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) (bool, error) { return true, nil }
func (NoopLocker) Release(context.Context) error         { return nil }
func (NoopLocker) Close() error                          { return nil }

// FromConfig builds the locker the configuration asks for.
func FromConfig(cfg *config.LockConfig) (Locker, error) {
	if !cfg.Enabled {
		return NoopLocker{}, nil
	}
	return NewRedisLocker(cfg.RedisURL, cfg.Key, cfg.TTL)
}
