package rate

import "errors"

var (
	// ErrRateLimited reports a window already past its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable reports a failed counter read or write.
	ErrRedisUnavailable = errors.New("rate limit backend unavailable")
)
