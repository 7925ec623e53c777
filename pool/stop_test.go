package pool

import (
	"context"
	"iter"
	"sync/atomic"
	"testing"
	"time"
)

func TestStopConditions_ShouldStop(t *testing.T) {
	tests := []struct {
		name string
		cond StopConditions
		ev   Event
		want bool
	}{
		{name: "nothing set", cond: StopConditions{}, ev: EventHardFail, want: false},
		{name: "success", cond: StopConditions{StopOnSuccess: true}, ev: EventSuccess, want: true},
		{name: "soft fail", cond: StopConditions{StopOnSoftFail: true}, ev: EventSoftFail, want: true},
		{name: "hard fail", cond: StopConditions{StopOnHardFail: true}, ev: EventHardFail, want: true},
		{name: "timeout", cond: StopConditions{StopOnTimeout: true}, ev: EventTimeout, want: true},
		{name: "soft exhausted", cond: StopConditions{StopOnSoftExhausted: true}, ev: EventSoftExhausted, want: true},
		{name: "timeout exhausted", cond: StopConditions{StopOnTimeoutExhausted: true}, ev: EventTimeoutExhausted, want: true},
		{name: "other event", cond: StopConditions{StopOnSoftFail: true}, ev: EventSoftExhausted, want: false},
		{name: "unknown event", cond: StopConditions{StopOnSuccess: true}, ev: Event(42), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.ShouldStop(tt.ev); got != tt.want {
				t.Errorf("ShouldStop(%s) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}

	if (StopConditions{}).Any() {
		t.Error("empty conditions should not report Any")
	}
	if !(StopConditions{StopOnTimeoutExhausted: true}).Any() {
		t.Error("expected Any to report a set condition")
	}

	cond := StopConditions{StopOnSuccess: true, StopOnSoftExhausted: true}
	if got := cond.LogValue().String(); got != "success,soft_exhausted" {
		t.Errorf("LogValue() = %q", got)
	}
}

func TestStop_OnHardFailScenario(t *testing.T) {
	ft := newFakeTransport(func(item, _ int) (Outcome, error) {
		if item == 1 {
			return HardFail, nil
		}
		return Success, nil
	})
	runner := newFakeRunner(t, ft,
		WithConcurrency(1),
		WithStopConditions(StopConditions{StopOnHardFail: true}),
	)

	res, err := runner.Run(context.Background(), FromSlice(seq(3)))
	if err != nil {
		t.Fatalf("stop condition must not surface as an error, got %v", err)
	}

	if len(res.Failed) != 1 || res.Failed[0].Item != 1 {
		t.Errorf("expected exactly item 1 hard-failed, got %+v", res.Failed)
	}
	if ft.Attempts(2) != 0 {
		t.Errorf("third item must never be attempted, got %d attempts", ft.Attempts(2))
	}
	if res.Stats.Done() > res.Stats.Seen {
		t.Errorf("done %d exceeds seen %d", res.Stats.Done(), res.Stats.Seen)
	}
}

func TestStop_OnFirstHardFailRegardlessOfN(t *testing.T) {
	for _, n := range []int{2, 10, 200} {
		ft := newFakeTransport(func(item, _ int) (Outcome, error) {
			if item == 0 {
				return HardFail, nil
			}
			return Success, nil
		})
		runner := newFakeRunner(t, ft,
			WithConcurrency(1),
			WithStopConditions(StopConditions{StopOnHardFail: true}),
		)

		res, err := runner.Run(context.Background(), FromSlice(seq(n)))
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(res.Failed) != 1 || len(res.Success) != 0 {
			t.Errorf("n=%d: expected 1 hard failure and 0 successes, got %d/%d", n, len(res.Failed), len(res.Success))
		}
	}
}

func TestStop_HardFailCallbackRunsBeforeStop(t *testing.T) {
	var called atomic.Bool
	ft := newFakeTransport(always(HardFail))
	runner := newFakeRunner(t, ft,
		WithConcurrency(1),
		WithStopConditions(StopConditions{StopOnHardFail: true}),
		WithCallbacks(Callbacks[int, fakeResp]{
			OnHardFail: func(int, fakeResp) error {
				called.Store(true)
				return nil
			},
		}),
	)

	if _, err := runner.Run(context.Background(), FromSlice(seq(5))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called.Load() {
		t.Error("expected OnHardFail to fire before the run stopped")
	}
}

func TestStop_OnSoftFailCountsOneRetry(t *testing.T) {
	var softCalls atomic.Int64
	ft := newFakeTransport(always(SoftFail))
	runner := newFakeRunner(t, ft,
		WithStopConditions(StopConditions{StopOnSoftFail: true}),
		WithCallbacks(Callbacks[int, fakeResp]{
			OnSoftFail: func(int, int) error {
				softCalls.Add(1)
				return nil
			},
		}),
	)

	res, err := runner.Run(context.Background(), FromSlice([]int{0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Stats.SoftRetries != 1 {
		t.Errorf("expected SoftRetries=1, got %d", res.Stats.SoftRetries)
	}
	if len(res.SoftExhausted) != 0 {
		t.Errorf("expected no exhaustion, got %v", res.SoftExhausted)
	}
	if ft.Attempts(0) != 1 || softCalls.Load() != 1 {
		t.Errorf("expected a single attempt and callback, got %d/%d", ft.Attempts(0), softCalls.Load())
	}
}

func TestStop_OnTimeoutCountsOneRetry(t *testing.T) {
	ft := newFakeTransport(func(int, int) (Outcome, error) { return Success, errHang })
	runner := newFakeRunner(t, ft,
		WithRequestTimeout(10*time.Millisecond),
		WithStopConditions(StopConditions{StopOnTimeout: true}),
	)

	res, err := runner.Run(context.Background(), FromSlice([]int{0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.TimeoutRetries != 1 || len(res.TimeoutExhausted) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestStop_OnSoftExhausted(t *testing.T) {
	ft := newFakeTransport(always(SoftFail))
	runner := newFakeRunner(t, ft,
		WithConcurrency(1),
		WithMaxRetriesBySoftFail(1),
		WithStopConditions(StopConditions{StopOnSoftExhausted: true}),
	)

	res, err := runner.Run(context.Background(), FromSlice(seq(3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.SoftExhausted) != 1 || res.SoftExhausted[0] != 0 {
		t.Errorf("expected only item 0 soft-exhausted, got %v", res.SoftExhausted)
	}
	if ft.Attempts(1) != 0 {
		t.Errorf("expected item 1 untouched, got %d attempts", ft.Attempts(1))
	}
}

func TestStop_OnTimeoutExhausted(t *testing.T) {
	ft := newFakeTransport(func(int, int) (Outcome, error) { return Success, ErrTimeout })
	runner := newFakeRunner(t, ft,
		WithConcurrency(1),
		WithMaxRetriesByTimeout(2),
		WithStopConditions(StopConditions{StopOnTimeoutExhausted: true}),
	)

	res, err := runner.Run(context.Background(), FromSlice(seq(4)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.TimeoutExhausted) != 1 || res.Stats.TimeoutRetries != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestStop_OnSuccessWithInfiniteSource(t *testing.T) {
	infinite := func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}

	ft := newFakeTransport(func(item, _ int) (Outcome, error) {
		if item < 5 {
			return HardFail, nil
		}
		return Success, nil
	})
	runner := newFakeRunner(t, ft,
		WithConcurrency(1),
		WithStopConditions(StopConditions{StopOnSuccess: true}),
	)

	res, err := runner.Run(context.Background(), FromSeq(iter.Seq[int](infinite)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Success) != 1 || len(res.Failed) != 5 {
		t.Errorf("expected 5 failures then 1 success, got %d/%d", len(res.Failed), len(res.Success))
	}
	if runner.Phase() != PhaseFinished {
		t.Errorf("expected finished phase, got %s", runner.Phase())
	}
}
