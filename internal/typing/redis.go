package typing

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"strconv"
	"strings"
	"time"
)

const keyPrefix = "typing:"

// RedisTracker shares signals between instances through Redis.
// Each signal is stored under the typing user's key with the eviction window as TTL,
// the value keeps target and signal time so liveness is decided on read.
type RedisTracker struct {
	client     redis.UniversalClient
	liveWindow time.Duration
	evictAfter time.Duration
	now        func() time.Time
}

// NewRedisClient builds client from Config
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewRedisTracker(client redis.UniversalClient, cfg Config) *RedisTracker {
	live, evict := cfg.windows()
	return &RedisTracker{
		client:     client,
		liveWindow: live,
		evictAfter: evict,
		now:        time.Now,
	}
}

func key(user int64) string {
	return keyPrefix + strconv.FormatInt(user, 10)
}

func encodeSignal(target int64, at time.Time) string {
	return strconv.FormatInt(target, 10) + ":" + strconv.FormatInt(at.UnixNano(), 10)
}

func decodeSignal(v string) (int64, time.Time, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("malformed typing signal %q", v)
	}
	target, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed typing target %q: %w", parts[0], err)
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed typing time %q: %w", parts[1], err)
	}
	return target, time.Unix(0, nanos), nil
}

func (r *RedisTracker) Signal(ctx context.Context, user, target int64) error {
	return r.client.Set(ctx, key(user), encodeSignal(target, r.now()), r.evictAfter).Err()
}

func (r *RedisTracker) TypingTo(ctx context.Context, subject int64) (int64, bool, error) {
	v, err := r.client.Get(ctx, key(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	target, at, err := decodeSignal(v)
	if err != nil {
		return 0, false, err
	}

	if r.now().Sub(at) >= r.liveWindow {
		return 0, false, nil
	}

	return target, true, nil
}
