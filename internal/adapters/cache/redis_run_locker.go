package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

const lockKeyPrefix = "deal:lock:"

// releaseScript deletes the key only while it still holds the caller's
// token, so an expired lease cannot release a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockClient is the subset of a Redis client the locker needs.
type LockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisRunLocker is a ports.RunLocker shared by every replica.
type RedisRunLocker struct {
	client LockClient
}

func NewRedisRunLocker(client LockClient) *RedisRunLocker {
	return &RedisRunLocker{client: client}
}

func (l *RedisRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}
	return &redisLease{client: l.client, key: lockKey(key), token: token}, nil
}

type redisLease struct {
	client redis.Scripter
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release run lock %s: %w", l.key, err)
	}
	return nil
}

func lockKey(key string) string {
	return lockKeyPrefix + key
}
