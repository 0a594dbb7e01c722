package hint

import "errors"

// Sentinel kinds for hint errors. InsufficientData is a typed result the
// caller must branch on, not a failure of the generator.
var (
	ErrInsufficientData = errors.New("insufficient context data")
)
