package fetcher

import (
	"math"
	"time"
)

// Backoff computes exponential retry delays.
//
// The delay before retry n (the attempt that follows n failed attempts) is
// Base * Multiplier^(n-1), raised to the server's Retry-After if that is
// longer, and capped at Max when Max is positive.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// NewBackoff creates a doubling Backoff.
func NewBackoff(base, maxDelay time.Duration) Backoff {
	return Backoff{Base: base, Max: maxDelay, Multiplier: 2}
}

// Delay returns the wait after failed attempt number attempt (1-based).
func (b Backoff) Delay(attempt int, retryAfter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(b.Base) * math.Pow(mult, float64(attempt-1))
	var delay time.Duration
	if d >= math.MaxInt64 {
		delay = time.Duration(math.MaxInt64)
	} else {
		delay = time.Duration(d)
	}

	delay = max(delay, retryAfter)
	if b.Max > 0 {
		delay = min(delay, b.Max)
	}
	return delay
}
