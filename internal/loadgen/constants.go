package loadgen

import "time"

// HTTP status code constants.
const (
	StatusOK      = 200
	StatusCreated = 201
)

// Runner configuration constants.
const (
	ProcessingSettleDelay = 2 * time.Second
	PercentageMultiplier  = 100
)
