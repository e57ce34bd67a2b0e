package utils

import (
	"math/rand"
	"time"
)

// Backoff produces exponential retry delays with jitter: base doubles on every
// Next() call, jitter spreads the result across [1-jitter, 1+jitter] so
// restarting nodes never retry in lockstep, and the value never exceeds max.
// Not safe for concurrent use; each retry loop owns its instance.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64
	current time.Duration
}

func NewBackoff(base, max time.Duration, jitter float64) *Backoff {

	if base <= 0 {
		base = time.Second
	}

	if max <= 0 || max < base {
		max = 30 * time.Second
	}

	if jitter < 0 || jitter > 1 {
		jitter = 0.1
	}

	return &Backoff{base: base, max: max, jitter: jitter, current: base}
}

func (backoff *Backoff) Next() time.Duration {

	delay := backoff.current

	if backoff.jitter > 0 {
		factor := 1 + (rand.Float64()*2-1)*backoff.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	if delay > backoff.max {
		delay = backoff.max
	}

	next := backoff.current * 2

	if next > backoff.max {
		next = backoff.max
	}

	backoff.current = next

	return delay
}

func (backoff *Backoff) Reset() {
	backoff.current = backoff.base
}
