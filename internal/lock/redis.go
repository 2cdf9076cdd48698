package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a single-instance SET NX PX lock. TTL bounds how long a crashed
// holder can block the key; it must exceed the longest unit of work.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *slog.Logger
}

type RedisOption func(*Redis)

func WithPrefix(p string) RedisOption { return func(r *Redis) { r.prefix = p } }

func WithRetryInterval(d time.Duration) RedisOption { return func(r *Redis) { r.retry = d } }

func WithLogger(l *slog.Logger) RedisOption { return func(r *Redis) { r.log = l } }

func NewRedis(rdb *redis.Client, ttl time.Duration, opts ...RedisOption) *Redis {
	if rdb == nil {
		panic("nil redis client passed to lock.NewRedis")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	r := &Redis{
		rdb:    rdb,
		prefix: "lock",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.prefix + ":" + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Join(ErrNotAcquired, ctxErr)
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// The caller's context may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, r.rdb, []string{full}, token).Err(); err != nil {
			r.log.Warn("release redis lock", "key", full, "err", err)
		}
	}, nil
}
