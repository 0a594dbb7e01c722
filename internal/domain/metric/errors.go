package metric

import "errors"

// Sentinel kinds for catalogue errors. These allow errors.Is from callers.
var (
	ErrInvalidMetricKey = errors.New("invalid metric key")
	ErrRangeViolation   = errors.New("metric value out of range")
)
