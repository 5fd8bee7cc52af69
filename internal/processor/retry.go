package processor

import (
	"math"
	"time"
)

// RetryPolicy bounds booking attempts for one request. BackoffFactor 1 (the default) keeps the delay fixed.
type RetryPolicy struct {
	MaxAttempts   int
	Delay         time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func (r RetryPolicy) attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// NextDelay returns the pause after the given attempt (1-based).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.Delay <= 0 {
		return 0
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 1
	}
	d := time.Duration(float64(r.Delay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}
