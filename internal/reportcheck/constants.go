package reportcheck

import "time"

// Defaults applied when a Config field is left at its zero value.
const (
	DefaultRoundingStep = 10
	DefaultTimeout      = 60 * time.Second
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Floating point tolerance when recomputing averages.
const epsilon = 1e-9
