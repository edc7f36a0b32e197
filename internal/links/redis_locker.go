package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockTTL      = 30 * time.Second
	redisLockPrefix     = "carlot:lock:"
	redisRetryInterval  = 25 * time.Millisecond
	redisUnlockDeadline = 2 * time.Second
)

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds record locks in Redis so several server replicas share them.
// A lock expires after ttl if its holder dies.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker connects to url, which is either a redis:// URL or a bare host:port.
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return newRedisLocker(client, ttl, logger), nil
}

func newRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(redisRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.tryLock(ctx, redisKey, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.unlock(ctx, redisKey, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) tryLock(ctx context.Context, key, token string) (bool, error) {
	result, err := l.client.SetArgs(ctx, key, token, redis.SetArgs{
		Mode: "NX",
		TTL:  l.ttl,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return result == "OK", nil
}

func (l *RedisLocker) unlock(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisUnlockDeadline)
	defer cancel()
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.logger.Warn("release record lock", "key", key, "error", err)
	}
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
