package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retryCounters is the per-item retry state, discarded once the item reaches
// a terminal disposition.
type retryCounters struct {
	soft    int
	timeout int
}

// retryCategory binds one retryable failure kind to its budget, callbacks,
// stop conditions and state transitions.
type retryCategory[T any] struct {
	failEvent     Event
	exhaustEvent  Event
	max           int
	onFail        func(item T, retries int) error
	onExhausted   func(item T) error
	recordRetry   func() bool
	recordExhaust func(item T) (int64, bool)
}

// attemptResult is the outcome of one transport call plus classification and parsing.
type attemptResult[P, R any] struct {
	outcome  Outcome
	resp     P
	hasResp  bool
	value    R
	timedOut bool
	stage    Stage
	err      error
}

// worker dequeues items until the queue is closed or the run is cancelled.
// It returns a non-nil error only for an unexpected failure, which cancels
// every other goroutine of the run.
func (r *Runner[T, P, R]) worker(ctx context.Context, queue <-chan T) error {
	for {
		select {
		case item, ok := <-queue:
			if !ok {
				return nil
			}
			if err := r.process(ctx, item); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// process drives one item through strictly sequential attempts until it
// reaches a terminal disposition or the run is cancelled.
func (r *Runner[T, P, R]) process(ctx context.Context, item T) error {
	var (
		counters  retryCounters
		prevDelay time.Duration
	)

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		res := r.attempt(ctx, item, attempt)
		retry, err := r.dispose(ctx, item, res, &counters)
		r.release(res)
		if err != nil || !retry {
			return err
		}

		delay := r.cfg.backoff.NextDelay(attempt, prevDelay)
		prevDelay = delay
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
}

// attempt performs, classifies and parses under a fresh per-request deadline.
func (r *Runner[T, P, R]) attempt(ctx context.Context, item T, n int) (res attemptResult[P, R]) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.requestTimeout)
	defer cancel()

	r.cfg.observer.OnAttemptStart(ctx)
	start := time.Now()
	defer func() {
		r.cfg.observer.OnAttempt(ctx, AttemptRecord{
			Attempt:  n,
			Outcome:  res.outcome,
			TimedOut: res.timedOut,
			Duration: time.Since(start),
			Err:      res.err,
		})
	}()

	fail := func(stage Stage, err error) attemptResult[P, R] {
		res.stage = stage
		res.err = err
		res.timedOut = ctx.Err() == nil && isTimeout(actx, stage, err)
		return res
	}

	err := guard(func() (err error) {
		res.resp, err = r.transport.Perform(actx, item)
		return err
	})
	if err != nil {
		return fail(StageTransport, err)
	}
	res.hasResp = true

	err = guard(func() (err error) {
		res.outcome, err = r.classify(res.resp)
		return err
	})
	if err == nil && (res.outcome < Success || res.outcome > HardFail) {
		err = fmt.Errorf("unknown outcome %d", int(res.outcome))
	}
	if err != nil {
		return fail(StageClassify, err)
	}

	err = guard(func() (err error) {
		res.value, err = r.cfg.parser(actx, item, res.resp)
		return err
	})
	if err != nil {
		return fail(StageParse, err)
	}

	return res
}

// dispose applies the retry policy to one attempt result. It reports whether
// the item must be attempted again.
func (r *Runner[T, P, R]) dispose(ctx context.Context, item T, res attemptResult[P, R], c *retryCounters) (bool, error) {
	switch {
	case res.err != nil && ctx.Err() != nil:
		// the run is going away; the item is abandoned without a disposition
		return false, nil
	case res.timedOut:
		return r.retryOrExhaust(ctx, item, &r.timeoutCategory, &c.timeout)
	case res.err != nil:
		return false, r.fail(item, res.stage, res.err)
	}

	if r.state.isAborted() {
		return false, nil
	}

	switch res.outcome {
	case Success:
		return false, r.terminal(ctx, item, res, EventSuccess, r.state.recordSuccess, r.cfg.callbacks.OnSuccess)
	case HardFail:
		return false, r.terminal(ctx, item, res, EventHardFail, r.state.recordHardFail, r.cfg.callbacks.OnHardFail)
	default:
		return r.retryOrExhaust(ctx, item, &r.softCategory, &c.soft)
	}
}

// terminal records a Success or HardFail, fires its callback, then checks the
// stop condition.
func (r *Runner[T, P, R]) terminal(
	ctx context.Context,
	item T,
	res attemptResult[P, R],
	ev Event,
	record func(R) (int64, bool),
	callback func(T, P) error,
) error {
	done, ok := record(res.value)
	if !ok {
		return nil
	}
	r.disposed(ctx, ev, done)

	if callback != nil {
		if err := guard(func() error { return callback(item, res.resp) }); err != nil {
			return r.fail(item, StageCallback, err)
		}
	}

	if r.cfg.stop.ShouldStop(ev) {
		r.abort(ev)
	}
	return nil
}

// retryOrExhaust handles a soft failure or a timeout. The callback fires
// first; a matching stop condition counts the failure as one retry and
// aborts; otherwise the item is either exhausted or retried.
func (r *Runner[T, P, R]) retryOrExhaust(ctx context.Context, item T, cat *retryCategory[T], used *int) (bool, error) {
	if cat.onFail != nil {
		if err := guard(func() error { return cat.onFail(item, *used) }); err != nil {
			return false, r.fail(item, StageCallback, err)
		}
	}

	if r.cfg.stop.ShouldStop(cat.failEvent) {
		if cat.recordRetry() {
			r.cfg.observer.OnDisposition(ctx, cat.failEvent)
			r.abort(cat.failEvent)
		}
		return false, nil
	}

	if *used >= cat.max {
		done, ok := cat.recordExhaust(item)
		if !ok {
			return false, nil
		}
		r.disposed(ctx, cat.exhaustEvent, done)

		if cat.onExhausted != nil {
			if err := guard(func() error { return cat.onExhausted(item) }); err != nil {
				return false, r.fail(item, StageCallback, err)
			}
		}
		if r.cfg.stop.ShouldStop(cat.exhaustEvent) {
			r.abort(cat.exhaustEvent)
		}
		return false, nil
	}

	if !cat.recordRetry() {
		return false, nil
	}
	r.cfg.observer.OnDisposition(ctx, cat.failEvent)
	*used++
	return true, nil
}

func (r *Runner[T, P, R]) disposed(ctx context.Context, ev Event, done int64) {
	r.cfg.observer.OnDisposition(ctx, ev)
	if r.reporter != nil {
		r.reporter.Notify(done)
	}
}

func (r *Runner[T, P, R]) release(res attemptResult[P, R]) {
	if r.releaser != nil && res.hasResp {
		r.releaser.Release(res.resp)
	}
}

// abort raises the abort flag once and cancels the run.
func (r *Runner[T, P, R]) abort(ev Event) {
	if r.state.abort() {
		r.cfg.logger.Info("stop condition met, aborting run", slog.String("event", ev.String()))
		r.cancel(errAborted)
	}
}

// fail records an unexpected failure and returns it, so that the calling
// goroutine can hand it to the errgroup.
func (r *Runner[T, P, R]) fail(item any, stage Stage, err error) error {
	ie := &ItemError{Item: item, Stage: stage, Err: err}
	r.state.addFailure(ie)
	r.cfg.logger.Warn("unexpected failure", slog.String("stage", string(stage)), slog.Any("error", err))
	return ie
}
