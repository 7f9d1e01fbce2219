package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window counts hits per subject under a key prefix. A zero or negative
// Limit disables the window.
type Window struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	period time.Duration
}

func NewWindow(redisClient redis.UniversalClient, prefix string, limit int, period time.Duration) *Window {
	return &Window{
		redis:  redisClient,
		prefix: prefix,
		limit:  limit,
		period: period,
	}
}

func (w *Window) key(subject string) string {
	return w.prefix + subject
}

func (w *Window) enabled(subject string) bool {
	return w != nil && w.redis != nil && w.limit > 0 && w.period > 0 && subject != ""
}

// Hit records one hit and reports ErrRateLimited once the count exceeds the
// limit. The hit is counted either way.
func (w *Window) Hit(ctx context.Context, subject string) error {
	if !w.enabled(subject) {
		return nil
	}
	count, err := w.redis.Incr(ctx, w.key(subject)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := w.redis.Expire(ctx, w.key(subject), w.period).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(w.limit) {
		return ErrRateLimited
	}
	return nil
}

// Check reports ErrRateLimited when the subject has already used its limit,
// without counting a hit.
func (w *Window) Check(ctx context.Context, subject string) error {
	n, err := w.Count(ctx, subject)
	if err != nil {
		return err
	}
	if w.enabled(subject) && n >= w.limit {
		return ErrRateLimited
	}
	return nil
}

// Count returns the hits in the current window. Missing keys count zero.
func (w *Window) Count(ctx context.Context, subject string) (int, error) {
	if !w.enabled(subject) {
		return 0, nil
	}
	n, err := w.redis.Get(ctx, w.key(subject)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n < 0 {
		return 0, nil
	}
	return int(n), nil
}

// Reset ends the subject's window.
func (w *Window) Reset(ctx context.Context, subject string) error {
	if !w.enabled(subject) {
		return nil
	}
	if err := w.redis.Del(ctx, w.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
