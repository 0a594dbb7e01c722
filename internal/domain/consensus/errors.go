package consensus

import "errors"

// Sentinel kinds for consensus errors. InsufficientRaters is a typed
// result the caller must branch on; the engine never emits a degraded
// partial consensus instead.
var (
	ErrInsufficientRaters = errors.New("insufficient raters")
)
