package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only when the caller still owns it, so a
// lock that expired and was re-acquired elsewhere is never released by the
// stale holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is the advisory-lock fallback for multi-instance
// deployments: SET NX with a TTL, polled with a short backoff up to the
// bounded wait. The TTL guards against a crashed holder leaking the lock.
type RedisLocker struct {
	client  *redis.Client
	logger  *zap.SugaredLogger
	timeout time.Duration
	ttl     time.Duration
	backoff time.Duration
	prefix  string
}

// NewRedisLocker creates a redis-backed Locker. timeout bounds the
// acquisition wait; ttl bounds how long a crashed holder can keep a key.
func NewRedisLocker(client *redis.Client, logger *zap.SugaredLogger, timeout, ttl time.Duration) *RedisLocker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client:  client,
		logger:  logger,
		timeout: timeout,
		ttl:     ttl,
		backoff: 50 * time.Millisecond,
		prefix:  "attendance:oplock:",
	}
}

// Acquire polls SET NX until it wins, the context is done, or the bounded
// wait elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (*Handle, error) {
	holder := uuid.New()
	redisKey := l.prefix + key
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, holder.String(), l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock acquire %s: %w", key, err)
		}
		if ok {
			l.logger.Debugw("redis operation lock acquired", "key", key, "holder", holder)
			return &Handle{Key: key, Holder: holder, AcquiredAt: time.Now()}, nil
		}
		if time.Now().After(deadline) {
			l.logger.Warnw("redis operation lock wait timed out", "key", key, "timeout", l.timeout)
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(l.backoff):
		}
	}
}

// Release deletes the key if and only if h still owns it.
func (l *RedisLocker) Release(h *Handle) error {
	if h == nil {
		return fmt.Errorf("nil lock handle")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + h.Key}, h.Holder.String()).Int()
	if err != nil {
		return fmt.Errorf("redis lock release %s: %w", h.Key, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s is no longer held by %s", h.Key, h.Holder)
	}
	return nil
}
