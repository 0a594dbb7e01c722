package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrLockTimeout      = errors.New("gave up waiting for in-flight recomputation")
	ErrCacheUnavailable = errors.New("cache unavailable")
)
