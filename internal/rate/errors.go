package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter exceeds its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when the counter backend fails.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
