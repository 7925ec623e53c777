package algorithms

import "time"

// BackoffType selects the retry pause algorithm.
type BackoffType int

const (
	// BackoffNone retries immediately (default).
	BackoffNone BackoffType = iota
	// BackoffExponential doubles the pause on every retry.
	BackoffExponential
	// BackoffJittered is exponential with a ±jitterFactor random spread.
	BackoffJittered
	// BackoffDecorrelated uses AWS-style decorrelated jitter.
	BackoffDecorrelated
)

// String returns the lowercase name of the backoff type.
func (t BackoffType) String() string {
	switch t {
	case BackoffNone:
		return "none"
	case BackoffExponential:
		return "exponential"
	case BackoffJittered:
		return "jittered"
	case BackoffDecorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}

// NewBackoffStrategy builds the strategy for the given type. A zero or negative
// initialDelay always yields a strategy that never waits.
func NewBackoffStrategy(
	backoffType BackoffType,
	initialDelay, maxDelay time.Duration,
	jitterFactor float64,
) BackoffStrategy {
	if initialDelay <= 0 {
		return noBackoff{}
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}

	switch backoffType {
	case BackoffExponential:
		return exponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay}

	case BackoffJittered:
		return jitteredBackoff{
			initialDelay: initialDelay,
			maxDelay:     maxDelay,
			jitterFactor: clamp(jitterFactor, 0, 1),
		}

	case BackoffDecorrelated:
		return decorrelatedJitterBackoff{initialDelay: initialDelay, maxDelay: maxDelay}

	default:
		return noBackoff{}
	}
}
