package readiness

import "errors"

// Sentinel kinds for readiness errors.
var (
	ErrInvalidWeights = errors.New("invalid readiness weights")
	ErrEmptySnapshot  = errors.New("empty snapshot")
)
