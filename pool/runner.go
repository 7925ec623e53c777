package pool

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fredo838/sparp/internal/progress"
)

// Runner drives one run: a producer reading the input source into a bounded
// queue, a fixed number of workers performing requests with retries, and an
// optional progress reporter.
//
// Type parameters:
//   - T: The request item type
//   - P: The raw response type produced by the Transport
//   - R: The parsed value type collected in the Result
//
// A Runner is single use: Run may be called once.
type Runner[T, P, R any] struct {
	cfg       *config[T, P, R]
	transport Transport[T, P]
	releaser  Releaser[P]
	classify  Classifier[P]

	softCategory    retryCategory[T]
	timeoutCategory retryCategory[T]

	state    *runState[T, R]
	phase    atomic.Int32
	once     sync.Once
	cancel   context.CancelCauseFunc
	reporter *progress.Reporter
}

// NewRunner validates the options and creates a Runner.
//
// Parameters:
//   - transport: Performs one request per attempt; if it also implements
//     Releaser[P], every response is released after use
//   - classify: Maps each response to Success, SoftFail or HardFail
//   - opts: Functional options; see the With* functions
//
// Returns:
//   - The runner, or a *ConfigError describing the first invalid option
//
// Example:
//
//	runner, err := pool.NewRunner[transport.Request, *transport.Response, transport.ParsedResponse](
//	    client, transport.DefaultClassifier.Classify,
//	    pool.WithConcurrency(20),
//	    pool.WithParser(transport.DefaultParser),
//	)
func NewRunner[T, P, R any](transport Transport[T, P], classify Classifier[P], opts ...Option) (*Runner[T, P, R], error) {
	if transport == nil {
		return nil, &ConfigError{Field: "transport", Value: nil}
	}
	if classify == nil {
		return nil, &ConfigError{Field: "classifier", Value: nil}
	}

	cfg, err := buildConfig[T, P, R](opts)
	if err != nil {
		return nil, err
	}

	r := &Runner[T, P, R]{
		cfg:       cfg,
		transport: transport,
		classify:  classify,
		state:     newRunState[T, R](cfg.estimate),
	}
	if rel, ok := transport.(Releaser[P]); ok {
		r.releaser = rel
	}

	r.softCategory = retryCategory[T]{
		failEvent:     EventSoftFail,
		exhaustEvent:  EventSoftExhausted,
		max:           cfg.maxSoft,
		onFail:        cfg.callbacks.OnSoftFail,
		onExhausted:   cfg.callbacks.OnSoftExhausted,
		recordRetry:   r.state.recordSoftRetry,
		recordExhaust: r.state.recordSoftExhausted,
	}
	r.timeoutCategory = retryCategory[T]{
		failEvent:     EventTimeout,
		exhaustEvent:  EventTimeoutExhausted,
		max:           cfg.maxTimeout,
		onFail:        cfg.callbacks.OnTimeout,
		onExhausted:   cfg.callbacks.OnTimeoutExhausted,
		recordRetry:   r.state.recordTimeoutRetry,
		recordExhaust: r.state.recordTimeoutExhausted,
	}

	return r, nil
}

// Run consumes src until it ends, a stop condition fires, an unexpected
// failure occurs or ctx is cancelled, and returns what was recorded.
//
// Returns:
//   - nil when the source was fully processed or a stop condition halted the run
//   - *RunError when one or more unexpected failures occurred
//   - ctx.Err() when the caller cancelled the run
//
// The Result is valid in every case. A second call returns ErrAlreadyRun.
func (r *Runner[T, P, R]) Run(ctx context.Context, src iter.Seq2[T, error]) (Result[T, R], error) {
	res, err := Result[T, R]{}, ErrAlreadyRun
	r.once.Do(func() {
		res, err = r.run(ctx, src)
	})
	return res, err
}

// Phase returns the current lifecycle phase.
func (r *Runner[T, P, R]) Phase() Phase {
	return Phase(r.phase.Load())
}

// Done returns how many items have reached a terminal disposition so far.
func (r *Runner[T, P, R]) Done() int64 {
	return r.state.done()
}

// Stats returns a copy of the counters so far. It is safe to call while running.
func (r *Runner[T, P, R]) Stats() Stats {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return r.state.stats
}

func (r *Runner[T, P, R]) run(ctx context.Context, src iter.Seq2[T, error]) (Result[T, R], error) {
	logger := r.cfg.logger
	r.setPhase(PhaseStarting)
	if r.cfg.stop.Any() {
		logger.Info("stop conditions armed", slog.Any("stop", r.cfg.stop))
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	r.cancel = cancel

	stopReporter := r.startReporter()

	g, gctx := errgroup.WithContext(runCtx)
	queue := make(chan T, r.cfg.queueCapacity)

	r.setPhase(PhaseRunning)
	g.Go(func() error {
		return r.produce(gctx, src, queue)
	})
	for range r.cfg.concurrency {
		g.Go(func() error {
			return r.worker(gctx, queue)
		})
	}
	_ = g.Wait()

	r.setPhase(PhaseDraining)
	stopReporter()

	res, failures := r.state.drain()
	r.setPhase(PhaseFinished)

	var err error
	switch {
	case len(failures) > 0:
		err = &RunError{Failures: failures}
		logger.Warn("run failed", slog.Int("failures", len(failures)), slog.Any("stats", res.Stats))
	case r.state.isAborted():
		logger.Info("run stopped early", slog.Any("cause", context.Cause(runCtx)), slog.Any("stats", res.Stats))
	case ctx.Err() != nil:
		err = ctx.Err()
		logger.Info("run cancelled", slog.Any("error", err), slog.Any("stats", res.Stats))
	default:
		logger.Info("run finished", slog.Any("stats", res.Stats))
	}
	return res, err
}

// startReporter launches the progress reporter outside the run's errgroup and
// returns a function that stops it and performs the final render.
func (r *Runner[T, P, R]) startReporter() func() {
	if !r.cfg.progress {
		return func() {}
	}

	var renderer progress.Renderer
	switch r.cfg.progressStyle {
	case ProgressBar:
		renderer = progress.NewBarRenderer(r.cfg.progressOut, r.cfg.estimate)
	default:
		renderer = progress.NewLineRenderer(r.cfg.progressOut)
	}

	r.reporter = progress.NewReporter(r.state.progressSnapshot, renderer, r.cfg.timeThreshold, r.cfg.countThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		r.reporter.Run(ctx)
	}()

	return func() {
		cancel()
		<-stopped
		r.reporter.Finish()
	}
}

func (r *Runner[T, P, R]) setPhase(p Phase) {
	r.phase.Store(int32(p))
	r.cfg.logger.Debug("runner phase", slog.String("phase", p.String()))
}
