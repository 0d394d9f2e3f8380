package ratelimit

import "errors"

var (
	// ErrRateLimited is returned when the caller exceeded the window budget.
	ErrRateLimited = errors.New("ratelimit: too many requests")

	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("ratelimit: redis unavailable")
)
