package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

var errRefused = errors.New("connection refused")

func TestErr_TransportFailureCancelsRun(t *testing.T) {
	ft := newFakeTransport(func(item, _ int) (Outcome, error) {
		if item == 2 {
			return Success, errRefused
		}
		return Success, nil
	})
	runner := newFakeRunner(t, ft, WithConcurrency(1))

	res, err := runner.Run(context.Background(), FromSlice(seq(5)))

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %T: %v", err, err)
	}
	if !errors.Is(err, errRefused) {
		t.Errorf("expected errors.Is to reach the transport error")
	}

	var itemErr *ItemError
	if !errors.As(err, &itemErr) {
		t.Fatalf("expected an *ItemError in the chain")
	}
	if itemErr.Stage != StageTransport || itemErr.Item != 2 {
		t.Errorf("unexpected item error: %+v", itemErr)
	}

	if len(res.Success) != 2 {
		t.Errorf("expected partial result with 2 successes, got %d", len(res.Success))
	}
	if ft.Attempts(3) != 0 {
		t.Errorf("expected the run to stop after the failure")
	}
}

func TestErr_Stages(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name  string
		opts  []Option
		cls   Classifier[fakeResp]
		stage Stage
		text  string
	}{
		{
			name:  "classifier error",
			cls:   func(fakeResp) (Outcome, error) { return Success, errBoom },
			stage: StageClassify,
			text:  "boom",
		},
		{
			name:  "classifier panic",
			cls:   func(fakeResp) (Outcome, error) { panic("bad classifier") },
			stage: StageClassify,
			text:  "panic: bad classifier",
		},
		{
			name:  "unknown outcome",
			cls:   func(fakeResp) (Outcome, error) { return Outcome(9), nil },
			stage: StageClassify,
			text:  "unknown outcome 9",
		},
		{
			name: "parser error",
			opts: []Option{WithParser(func(context.Context, int, fakeResp) (fakeResp, error) {
				return fakeResp{}, errBoom
			})},
			stage: StageParse,
			text:  "boom",
		},
		{
			name: "callback error",
			opts: []Option{WithCallbacks(Callbacks[int, fakeResp]{
				OnSuccess: func(int, fakeResp) error { return errBoom },
			})},
			stage: StageCallback,
			text:  "boom",
		},
		{
			name: "callback panic",
			opts: []Option{WithCallbacks(Callbacks[int, fakeResp]{
				OnSuccess: func(int, fakeResp) error { panic("bad callback") },
			})},
			stage: StageCallback,
			text:  "panic: bad callback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := tt.cls
			if cls == nil {
				cls = classifyFake
			}
			runner, err := NewRunner[int, fakeResp, fakeResp](newFakeTransport(always(Success)), cls, tt.opts...)
			if err != nil {
				t.Fatalf("NewRunner: %v", err)
			}

			_, err = runner.Run(context.Background(), FromSlice([]int{0}))

			var itemErr *ItemError
			if !errors.As(err, &itemErr) {
				t.Fatalf("expected *ItemError, got %v", err)
			}
			if itemErr.Stage != tt.stage {
				t.Errorf("expected stage %s, got %s", tt.stage, itemErr.Stage)
			}
			if !strings.Contains(err.Error(), tt.text) {
				t.Errorf("expected %q in %q", tt.text, err.Error())
			}
		})
	}
}

func TestErr_TransportPanic(t *testing.T) {
	ft := newFakeTransport(func(int, int) (Outcome, error) { panic("transport exploded") })
	runner := newFakeRunner(t, ft)

	_, err := runner.Run(context.Background(), FromSlice([]int{0}))
	if err == nil || !strings.Contains(err.Error(), "transport exploded") {
		t.Fatalf("expected the panic to surface as an error, got %v", err)
	}
}

func TestErr_SourceError(t *testing.T) {
	errSource := errors.New("bad line")
	src := func(yield func(int, error) bool) {
		if !yield(0, nil) || !yield(1, nil) {
			return
		}
		yield(0, errSource)
	}

	runner := newFakeRunner(t, newFakeTransport(always(Success)), WithConcurrency(1))
	res, err := runner.Run(context.Background(), src)

	if !errors.Is(err, errSource) {
		t.Fatalf("expected source error, got %v", err)
	}
	var itemErr *ItemError
	if !errors.As(err, &itemErr) || itemErr.Stage != StageSource || itemErr.Item != nil {
		t.Errorf("unexpected item error: %+v", itemErr)
	}
	if res.Stats.Seen != 2 {
		t.Errorf("expected 2 items seen, got %d", res.Stats.Seen)
	}
}

func TestErr_SourcePanic(t *testing.T) {
	src := func(yield func(int, error) bool) {
		panic("generator crashed")
	}

	runner := newFakeRunner(t, newFakeTransport(always(Success)))
	_, err := runner.Run(context.Background(), src)
	if err == nil || !strings.Contains(err.Error(), "generator crashed") {
		t.Fatalf("expected source panic to surface, got %v", err)
	}
}

func TestErr_MultipleFailuresAggregated(t *testing.T) {
	const n = 3
	var (
		barrier sync.WaitGroup
		arrived = make(chan struct{})
	)
	barrier.Add(n)
	go func() {
		barrier.Wait()
		close(arrived)
	}()

	ft := newFakeTransport(func(int, int) (Outcome, error) {
		barrier.Done()
		<-arrived
		return Success, nil
	})
	runner := newFakeRunner(t, ft,
		WithConcurrency(n),
		WithCallbacks(Callbacks[int, fakeResp]{
			OnSuccess: func(item int, _ fakeResp) error { return errors.New("rejected") },
		}),
	)

	res, err := runner.Run(context.Background(), FromSlice(seq(n)))

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if len(runErr.Failures) != n {
		t.Errorf("expected %d failures, got %d", n, len(runErr.Failures))
	}
	if len(runErr.Unwrap()) != n {
		t.Errorf("expected Unwrap to expose every failure")
	}
	if !strings.Contains(err.Error(), "3 errors") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if len(res.Success) != n {
		t.Errorf("expected recorded successes in the partial result, got %d", len(res.Success))
	}
}

func TestErr_ErrorStrings(t *testing.T) {
	ie := &ItemError{Item: 4, Stage: StageParse, Err: errors.New("bad json")}
	if got, want := ie.Error(), "parse failed for item 4: bad json"; got != want {
		t.Errorf("ItemError.Error() = %q, want %q", got, want)
	}

	src := &ItemError{Stage: StageSource, Err: errors.New("eof")}
	if got, want := src.Error(), "source: eof"; got != want {
		t.Errorf("ItemError.Error() = %q, want %q", got, want)
	}

	re := &RunError{Failures: []*ItemError{ie}}
	if got, want := re.Error(), "pool: run failed: parse failed for item 4: bad json"; got != want {
		t.Errorf("RunError.Error() = %q, want %q", got, want)
	}

	ce := &ConfigError{Field: "concurrency", Value: 0}
	if got, want := ce.Error(), "pool: invalid concurrency: 0"; got != want {
		t.Errorf("ConfigError.Error() = %q, want %q", got, want)
	}
}
