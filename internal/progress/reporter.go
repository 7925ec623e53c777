package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Source returns the current counters of the run being reported on.
type Source func() Snapshot

// Renderer draws snapshots. Render may be called many times, Finish exactly once.
type Renderer interface {
	Render(s Snapshot)
	Finish(s Snapshot)
}

// Reporter drives a Renderer from a Source. Renders happen when the interval
// elapses, or immediately when at least every items completed since the last
// render (see Notify).
type Reporter struct {
	source   Source
	renderer Renderer
	interval time.Duration
	every    int64
	start    time.Time

	trigger      chan struct{}
	lastRendered atomic.Int64

	mu       sync.Mutex // serializes renders so shown counts never go backwards
	finished bool
}

// NewReporter builds a reporter. interval must be positive; every <= 0 disables
// count-triggered renders.
func NewReporter(src Source, r Renderer, interval time.Duration, every int64) *Reporter {
	return &Reporter{
		source:   src,
		renderer: r,
		interval: interval,
		every:    every,
		start:    time.Now(),
		trigger:  make(chan struct{}, 1),
	}
}

// Run renders until ctx is cancelled. It does not perform the final render; call
// Finish once Run has returned.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.render()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.render()
		case <-r.trigger:
			r.render()
		}
	}
}

// Notify tells the reporter that done items have reached a terminal state. It
// never blocks: when a render is already pending the signal is dropped.
func (r *Reporter) Notify(done int64) {
	if r.every <= 0 || done-r.lastRendered.Load() < r.every {
		return
	}
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Finish draws the final snapshot. Later calls are no-ops.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}
	r.finished = true
	r.renderer.Finish(r.snapshot())
}

func (r *Reporter) render() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}
	s := r.snapshot()
	r.lastRendered.Store(s.Done)
	r.renderer.Render(s)
}

func (r *Reporter) snapshot() Snapshot {
	s := r.source()
	s.Elapsed = time.Since(r.start)
	return s
}
