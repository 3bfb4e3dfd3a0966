package worker

import (
	"math"
	"time"
)

// RetryPolicy shapes the in-pass backoff of a sweep loop: a failed pass is
// retried up to MaxRetries times before the loop waits for its next tick.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the wait before the given 1-based attempt. The delay
// grows by BackoffFactor per attempt and is clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		return r.MaxDelay
	}
	if d <= 0 {
		// Overflow from a huge attempt count lands here.
		return base
	}
	return d
}
