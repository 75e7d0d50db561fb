// Package lock provides the per-user generation lock: a Redis lock shared
// across replicas and an in-process fallback for single-instance runs.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was re-acquired elsewhere is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements port.GenerationLock with SET NX PX.
type RedisLock struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisLock parses redisURL, connects and pings.
func NewRedisLock(redisURL string, logger *zap.Logger) (*RedisLock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisLock{client: client, prefix: "docflow:generating:", logger: logger}, nil
}

func (l *RedisLock) key(uid string) string {
	return l.prefix + uid
}

// Acquire takes the lock for ttl. ok is false when another holder has it.
func (l *RedisLock) Acquire(ctx context.Context, uid string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(uid), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire generation lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller's context may be cancelled by now.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key(uid)}, token).Err(); err != nil {
			l.logger.Warn("release generation lock failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	return release, true, nil
}

// Name identifies the dependency in health reports.
func (l *RedisLock) Name() string { return "redis" }

// Ping checks the Redis connection.
func (l *RedisLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RedisLock) Close() error {
	return l.client.Close()
}

// LocalLock is an in-process GenerationLock keyed by uid.
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocalLock creates a LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire takes the lock for ttl. An expired hold is treated as free.
func (l *LocalLock) Acquire(_ context.Context, uid string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if until, ok := l.held[uid]; ok && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	l.held[uid] = until

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			if l.held[uid].Equal(until) {
				delete(l.held, uid)
			}
			l.mu.Unlock()
		})
	}
	return release, true, nil
}
