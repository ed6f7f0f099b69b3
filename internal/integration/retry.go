package integration

import (
	"math/rand"
	"time"
)

// Retry delays for provider calls. Calls beyond the table reuse the last delay.
var retryDelays = []time.Duration{
	250 * time.Millisecond,
	1 * time.Second,
	3 * time.Second,
}

// JitterFactor is the ±percentage of jitter applied to delays.
const JitterFactor = 0.2

// NextRetryDelay returns the backoff before retry attempt (0-indexed) with jitter.
func NextRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryDelays) {
		attempt = len(retryDelays) - 1
	}

	base := retryDelays[attempt]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}
