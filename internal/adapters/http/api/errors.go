package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrMissingParameter = errors.New("missing or invalid request parameter")
)
