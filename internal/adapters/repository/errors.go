package repository

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrNotFound        = errors.New("snapshot not found")
	ErrImmutableLedger = errors.New("ledger is append-only")
	ErrUnavailable     = errors.New("snapshot store unavailable")
)
