package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
