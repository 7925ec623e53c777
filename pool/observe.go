package pool

import (
	"context"
	"log/slog"
	"time"
)

// AttemptRecord describes one finished attempt of one item.
type AttemptRecord struct {
	// Attempt is the zero-based attempt number for the item.
	Attempt  int
	Outcome  Outcome
	TimedOut bool
	Duration time.Duration
	// Err is set when the attempt failed unexpectedly (or was cancelled).
	Err error
}

// Label is a short, low-cardinality name for the attempt result.
func (r AttemptRecord) Label() string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.Err != nil:
		return "error"
	default:
		return r.Outcome.String()
	}
}

// Observer receives attempt and disposition events. Methods are called from
// worker goroutines and must be safe for concurrent use; they must not block.
// A panic in an observer is recovered and logged, and the event is dropped.
type Observer interface {
	OnAttemptStart(ctx context.Context)
	OnAttempt(ctx context.Context, rec AttemptRecord)
	OnDisposition(ctx context.Context, ev Event)
}

// BaseObserver implements Observer with no-ops. Embed it to implement only
// the methods you need.
type BaseObserver struct{}

func (BaseObserver) OnAttemptStart(context.Context)           {}
func (BaseObserver) OnAttempt(context.Context, AttemptRecord) {}
func (BaseObserver) OnDisposition(context.Context, Event)     {}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnAttemptStart(ctx context.Context) {
	for _, o := range m {
		o.OnAttemptStart(ctx)
	}
}

func (m MultiObserver) OnAttempt(ctx context.Context, rec AttemptRecord) {
	for _, o := range m {
		o.OnAttempt(ctx, rec)
	}
}

func (m MultiObserver) OnDisposition(ctx context.Context, ev Event) {
	for _, o := range m {
		o.OnDisposition(ctx, ev)
	}
}

// recoveringObserver wraps the configured observers so a panic cannot take
// down a worker.
type recoveringObserver struct {
	next   Observer
	logger *slog.Logger
}

func (o recoveringObserver) OnAttemptStart(ctx context.Context) {
	defer o.recover("OnAttemptStart")
	o.next.OnAttemptStart(ctx)
}

func (o recoveringObserver) OnAttempt(ctx context.Context, rec AttemptRecord) {
	defer o.recover("OnAttempt")
	o.next.OnAttempt(ctx, rec)
}

func (o recoveringObserver) OnDisposition(ctx context.Context, ev Event) {
	defer o.recover("OnDisposition")
	o.next.OnDisposition(ctx, ev)
}

func (o recoveringObserver) recover(method string) {
	if rec := recover(); rec != nil {
		o.logger.Warn("observer panicked", slog.String("method", method), slog.Any("panic", rec))
	}
}
