package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisName labels decisions made by the Redis store.
const RedisName = "redis"

// Redis counts requests with INCR. The window is started with PEXPIRE
// whenever the key carries no expiry, so a key that missed its expiry is
// repaired by the next request.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis store from a URL such as
// redis://127.0.0.1:6379/0. No connection is made until first use.
func NewRedis(url string, timeout time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	if timeout > 0 {
		opt.DialTimeout = timeout
		opt.ReadTimeout = timeout
		opt.WriteTimeout = timeout
	}

	return &Redis{client: redis.NewClient(opt)}, nil
}

// Incr implements the Store interface.
func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}

	count := incr.Val()

	// PTTL reports a negative value when the key has no expiry. A failed
	// PEXPIRE leaves the count valid and is retried on the next request.
	if ttl.Val() < 0 {
		_ = r.client.PExpire(ctx, key, window).Err()
	}

	return count, nil
}

// Ping implements the Pinger interface.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connections to Redis.
func (r *Redis) Close() error {
	return r.client.Close()
}
