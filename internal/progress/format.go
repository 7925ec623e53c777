// Package progress renders advisory status output for a running request pool.
//
// A Reporter periodically samples a Snapshot of the run's counters and hands it
// to a Renderer. It never mutates the run: the counters it shows may lag the
// workers by the increments in flight at the instant it samples.
package progress

import (
	"fmt"
	"strconv"
	"time"
)

// Snapshot is a point-in-time copy of the counters of one run.
type Snapshot struct {
	Done             int64
	Success          int64
	Failed           int64
	SoftExhausted    int64
	TimeoutExhausted int64
	SoftRetries      int64
	TimeoutRetries   int64

	// Seen is the number of items the producer has enqueued so far.
	Seen int64
	// Exhausted is set once the input source ended; Seen is then the exact total.
	Exhausted bool
	// Estimate is the caller-supplied expected total, 0 when unknown.
	Estimate int64

	Elapsed time.Duration
}

// Total renders the denominator of the progress fraction: the exact total once
// the producer is exhausted, "~estimate" when an estimate was supplied, "?" otherwise.
func (s Snapshot) Total() string {
	switch {
	case s.Exhausted:
		return strconv.FormatInt(s.Seen, 10)
	case s.Estimate > 0:
		return "~" + strconv.FormatInt(s.Estimate, 10)
	default:
		return "?"
	}
}

// Format renders the full status line.
func Format(s Snapshot) string {
	return fmt.Sprintf("PROGRESS: %d/%s | %s | ELAPSED: %s",
		s.Done, s.Total(), FormatCounts(s), s.Elapsed.Round(10*time.Millisecond))
}

// FormatCounts renders the per-category counters without the progress fraction.
func FormatCounts(s Snapshot) string {
	return fmt.Sprintf(
		"SUCCESS: %d | HARD_FAIL: %d | SOFT_EXHAUSTED: %d | TIMEOUT_EXHAUSTED: %d | SOFT_RETRIES: %d | TIMEOUT_RETRIES: %d",
		s.Success, s.Failed, s.SoftExhausted, s.TimeoutExhausted, s.SoftRetries, s.TimeoutRetries,
	)
}
