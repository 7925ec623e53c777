package pool

import (
	"sync"

	"github.com/fredo838/sparp/internal/progress"
)

// runState holds everything one run accumulates. Every transition takes the
// single mutex, so counters and collections always agree with each other.
type runState[T, R any] struct {
	mu sync.Mutex

	success          []R
	failed           []R
	softExhausted    []T
	timeoutExhausted []T
	stats            Stats

	exhausted bool
	aborted   bool
	failures  []*ItemError
	drained   bool

	estimate int64
}

func newRunState[T, R any](estimate int64) *runState[T, R] {
	return &runState[T, R]{estimate: estimate}
}

// transition applies fn as one critical section unless the run was aborted,
// in which case the event is dropped. It returns the number of items done
// after the transition.
func (s *runState[T, R]) transition(fn func()) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return s.stats.Done(), false
	}
	fn()
	return s.stats.Done(), true
}

func (s *runState[T, R]) recordSuccess(v R) (int64, bool) {
	return s.transition(func() {
		s.success = append(s.success, v)
		s.stats.Success++
	})
}

func (s *runState[T, R]) recordHardFail(v R) (int64, bool) {
	return s.transition(func() {
		s.failed = append(s.failed, v)
		s.stats.Failed++
	})
}

func (s *runState[T, R]) recordSoftExhausted(item T) (int64, bool) {
	return s.transition(func() {
		s.softExhausted = append(s.softExhausted, item)
		s.stats.SoftExhausted++
	})
}

func (s *runState[T, R]) recordTimeoutExhausted(item T) (int64, bool) {
	return s.transition(func() {
		s.timeoutExhausted = append(s.timeoutExhausted, item)
		s.stats.TimeoutExhausted++
	})
}

func (s *runState[T, R]) recordSoftRetry() bool {
	_, ok := s.transition(func() { s.stats.SoftRetries++ })
	return ok
}

func (s *runState[T, R]) recordTimeoutRetry() bool {
	_, ok := s.transition(func() { s.stats.TimeoutRetries++ })
	return ok
}

// addSeen adjusts the seen-count. The producer counts an item before handing
// it over and takes it back if the hand-over is cancelled, so done never
// exceeds seen.
func (s *runState[T, R]) addSeen(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exhausted {
		s.stats.Seen += delta
	}
}

func (s *runState[T, R]) markExhausted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted = true
}

// abort raises the abort flag and reports whether this call raised it.
func (s *runState[T, R]) abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return false
	}
	s.aborted = true
	return true
}

func (s *runState[T, R]) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *runState[T, R]) addFailure(err *ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *runState[T, R]) done() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Done()
}

func (s *runState[T, R]) progressSnapshot() progress.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress.Snapshot{
		Done:             s.stats.Done(),
		Success:          s.stats.Success,
		Failed:           s.stats.Failed,
		SoftExhausted:    s.stats.SoftExhausted,
		TimeoutExhausted: s.stats.TimeoutExhausted,
		SoftRetries:      s.stats.SoftRetries,
		TimeoutRetries:   s.stats.TimeoutRetries,
		Seen:             s.stats.Seen,
		Exhausted:        s.exhausted,
		Estimate:         s.estimate,
	}
}

// drain moves the collections into a Result. It must be called once, after
// every worker has returned; later calls return an empty result.
func (s *runState[T, R]) drain() (Result[T, R], []*ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drained {
		return Result[T, R]{Stats: s.stats}, nil
	}
	s.drained = true

	res := Result[T, R]{
		Success:          s.success,
		Failed:           s.failed,
		SoftExhausted:    s.softExhausted,
		TimeoutExhausted: s.timeoutExhausted,
		Stats:            s.stats,
	}
	failures := s.failures

	s.success, s.failed, s.softExhausted, s.timeoutExhausted, s.failures = nil, nil, nil, nil, nil
	return res, failures
}
