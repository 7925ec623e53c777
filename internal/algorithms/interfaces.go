package algorithms

import "time"

// BackoffStrategy computes the pause inserted between two attempts of the same item.
//
// Implementations are stateless and safe for concurrent use: every worker keeps its
// own previous delay and hands it back on the next call.
type BackoffStrategy interface {
	// NextDelay returns the pause before retry number retry (0-indexed: 0 is the
	// first retry after the initial attempt). prev is the delay returned for the
	// previous retry of the same item, or 0 for the first one.
	NextDelay(retry int, prev time.Duration) time.Duration
}
