package lock

import (
	"context"
	"errors"
	"time"

	"packvault-autosell-api/pkg/uid"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseIfOwnerScript deletes the lock only while it still holds our token.
var releaseIfOwnerScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

const retryInterval = 25 * time.Millisecond

// RedisLocker is a Locker shared by every API instance.
// The TTL bounds how long a crashed holder can block a user.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	wait      time.Duration
	log       zerolog.Logger
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client, keyPrefix string, ttl, wait time.Duration, log zerolog.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "packvault:autosell:lock"
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		wait:      wait,
		log:       log.With().Str("component", "redis_locker").Logger(),
	}
}

// Acquire polls SET NX until it wins, the wait elapses or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.keyPrefix + ":" + key
	token := uid.New()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockTimeout
			}
			return nil, ctx.Err()
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseIfOwnerScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
