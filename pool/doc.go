// Package pool provides a bounded-concurrency request runner with
// per-item retry budgets and run-wide stop conditions.
//
// The primary type is Runner[T, P, R]. A producer reads items of type T
// lazily from an iter.Seq2 into a bounded queue; a fixed number of workers
// take items from the queue and perform one request per attempt through a
// Transport, producing a raw response of type P. Each response is classified
// as Success, SoftFail or HardFail and parsed into a value of type R.
//
// # Basic Usage
//
//	ctx := context.Background()
//	runner, err := pool.NewRunner[string, int, int](
//	    pool.TransportFunc[string, int](fetchStatus),
//	    func(status int) (pool.Outcome, error) {
//	        if status == 200 {
//	            return pool.Success, nil
//	        }
//	        return pool.HardFail, nil
//	    },
//	    pool.WithConcurrency(20),
//	)
//	if err != nil {
//	    return err
//	}
//	res, err := runner.Run(ctx, pool.FromSlice(urls))
//
// # Retries
//
// A SoftFail, or an attempt whose request deadline elapsed, is retried.
// The two kinds have independent budgets:
//
//	runner, err := pool.NewRunner[string, int, int](transport, classify,
//	    pool.WithMaxRetriesBySoftFail(5),
//	    pool.WithMaxRetriesByTimeout(2),
//	    pool.WithRequestTimeout(3*time.Second),
//	    pool.WithRetryBackoff(pool.BackoffJittered, 100*time.Millisecond, 5*time.Second),
//	)
//
// An item that keeps soft-failing is attempted max+1 times and then lands
// in Result.SoftExhausted; Stats.SoftRetries grows by max. A HardFail is
// never retried.
//
// # Stop Conditions
//
// The run can be halted the first time a given event occurs:
//
//	pool.WithStopConditions(pool.StopConditions{StopOnHardFail: true})
//
// A halted run is not an error: Run returns the partial Result and nil.
// Events raised after the halt are not recorded.
//
// # Errors
//
// Anything other than a classified outcome or a request timeout, such as a
// connection error, a classifier or parser error, or a callback error or
// panic, cancels the run. Run then returns the partial Result together with
// a *RunError listing every such failure.
//
// # Progress
//
// With WithProgressBar(true) a status line (or a bar, see
// WithProgressRenderer) is written to WithProgressOutput:
//
//	PROGRESS: 40/~100 | SUCCESS: 38 | HARD_FAIL: 1 | SOFT_EXHAUSTED: 0 | TIMEOUT_EXHAUSTED: 1 | SOFT_RETRIES: 7 | TIMEOUT_RETRIES: 2 | ELAPSED: 1.5s
//
// # Configuration Options
//
//   - WithConcurrency(n): Number of workers and maximum requests in flight (default: 100)
//   - WithMaxRetriesBySoftFail(n): Soft-fail retry budget per item (default: 20)
//   - WithMaxRetriesByTimeout(n): Timeout retry budget per item (default: 20)
//   - WithRequestTimeout(d): Deadline of one attempt (default: 30s)
//   - WithQueueCapacity(n): Items read ahead of the workers (default: 100)
//   - WithParser(fn): Response parser (default: the response itself)
//   - WithCallbacks(cb): Per-event callbacks
//   - WithStopConditions(s): Events that halt the run
//   - WithRateLimit(rps, burst) / WithInputDelay(d): Pace the producer
//   - WithObserver(o): Attempt and disposition hooks, e.g. for metrics
//   - WithLogger(l): Lifecycle logging through log/slog
package pool
