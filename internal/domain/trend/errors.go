package trend

import "errors"

// Sentinel kinds for trend errors.
var (
	ErrInsufficientData = errors.New("insufficient assessment history")
)
