package algorithms

import (
	"math/rand/v2"
	"time"
)

// maxShift keeps 1<<retry from overflowing.
const maxShift = 62

type noBackoff struct{}

func (noBackoff) NextDelay(int, time.Duration) time.Duration { return 0 }

// exponentialBackoff waits initialDelay * 2^retry, capped at maxDelay.
//
//	retry 0: 1x initialDelay
//	retry 1: 2x initialDelay
//	retry 2: 4x initialDelay
type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func (eb exponentialBackoff) NextDelay(retry int, _ time.Duration) time.Duration {
	return calcExponentialDelay(retry, eb.initialDelay, eb.maxDelay)
}

// jitteredBackoff spreads the exponential delay by ±jitterFactor so that items
// rate-limited at the same instant do not come back in lockstep.
type jitteredBackoff struct {
	initialDelay, maxDelay time.Duration
	jitterFactor           float64
}

func (jb jitteredBackoff) NextDelay(retry int, _ time.Duration) time.Duration {
	if retry < 0 {
		return 0
	}
	base := calcExponentialDelay(retry, jb.initialDelay, jb.maxDelay)
	multiplier := 1.0 + (rand.Float64()*2-1)*jb.jitterFactor // #nosec G404 -- jitter only
	return clamp(time.Duration(float64(base)*multiplier), 0, jb.maxDelay)
}

// decorrelatedJitterBackoff implements sleep = min(maxDelay, random(initialDelay, prev*3)).
//
// Reference: AWS Architecture Blog - "Exponential Backoff And Jitter" (Marc Brooker, 2015).
type decorrelatedJitterBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func (djb decorrelatedJitterBackoff) NextDelay(retry int, prev time.Duration) time.Duration {
	if retry <= 0 || prev <= 0 {
		return djb.initialDelay
	}

	upper := min(time.Duration(float64(prev)*3), djb.maxDelay)
	spread := upper - djb.initialDelay
	if spread <= 0 {
		return djb.initialDelay
	}
	return djb.initialDelay + time.Duration(rand.Int64N(int64(spread))) // #nosec G404 -- jitter only
}

func calcExponentialDelay(retry int, initialDelay, maxDelay time.Duration) time.Duration {
	if retry < 0 {
		return 0
	}
	if retry >= maxShift {
		return maxDelay
	}

	delay := time.Duration(int64(1)<<uint(retry)) * initialDelay
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}
	return delay
}

func clamp[T ~int64 | ~float64](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
