package pool

import (
	"context"
	"fmt"
	"iter"
)

// FromSlice yields the items of a slice in order.
func FromSlice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

// FromSeq adapts an infallible sequence, such as a generator function.
func FromSeq[T any](seq iter.Seq[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for it := range seq {
			if !yield(it, nil) {
				return
			}
		}
	}
}

// FromChan yields items received from ch until it is closed.
func FromChan[T any](ch <-chan T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for it := range ch {
			if !yield(it, nil) {
				return
			}
		}
	}
}

// produce feeds the queue from src and closes it when src ends, which tells
// every worker to stop once the queue is drained. Blocking on a full queue is
// the only backpressure; an optional limiter paces enqueues.
func (r *Runner[T, P, R]) produce(ctx context.Context, src iter.Seq2[T, error], queue chan<- T) (err error) {
	defer close(queue)
	defer func() {
		if rec := recover(); rec != nil {
			err = r.fail(nil, StageSource, fmt.Errorf("panic in input source: %v", rec))
		}
	}()

	for item, srcErr := range src {
		if srcErr != nil {
			return r.fail(nil, StageSource, srcErr)
		}

		if lim := r.cfg.limiter; lim != nil {
			// Wait refuses outright when the delay outlasts ctx's deadline;
			// a reservation keeps pacing until the deadline actually passes.
			res := lim.Reserve()
			if !sleepCtx(ctx, res.Delay()) {
				res.Cancel()
				return nil
			}
		}

		r.state.addSeen(1)
		select {
		case queue <- item:
		case <-ctx.Done():
			r.state.addSeen(-1)
			return nil
		}
	}

	r.state.markExhausted()
	r.cfg.logger.Debug("input source exhausted", "seen", r.state.progressSnapshot().Seen)
	return nil
}
