package pool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"time"

	"golang.org/x/time/rate"

	"github.com/fredo838/sparp/internal/algorithms"
)

const (
	defaultConcurrency    = 100
	defaultMaxRetries     = 20
	defaultQueueCapacity  = 100
	defaultRequestTimeout = 30 * time.Second
	defaultCountThreshold = 1
	defaultTimeThreshold  = 500 * time.Millisecond
	defaultBackoffMax     = 10 * time.Second
	defaultBackoffJitter  = 0.2
)

// BackoffType selects the pause inserted between two attempts of the same item.
type BackoffType = algorithms.BackoffType

const (
	BackoffNone         = algorithms.BackoffNone
	BackoffExponential  = algorithms.BackoffExponential
	BackoffJittered     = algorithms.BackoffJittered
	BackoffDecorrelated = algorithms.BackoffDecorrelated
)

// ProgressStyle selects how progress is drawn when it is enabled.
type ProgressStyle int

const (
	// ProgressLine rewrites one status line in place.
	ProgressLine ProgressStyle = iota
	// ProgressBar draws a progress bar, or a spinner while the total is unknown.
	ProgressBar
)

// Option configures a Runner.
type Option func(*options)

type options struct {
	concurrency    int
	maxSoft        int
	maxTimeout     int
	parser         any
	callbacks      any
	stop           StopConditions
	queueCapacity  int
	progress       bool
	progressOut    io.Writer
	progressStyle  ProgressStyle
	estimate       int64
	requestTimeout time.Duration
	countThreshold int64
	timeThreshold  time.Duration

	backoffType    BackoffType
	backoffInitial time.Duration
	backoffMax     time.Duration

	ratePerSecond float64
	rateBurst     int
	inputDelay    time.Duration

	observers []Observer
	logger    *slog.Logger
}

// WithConcurrency sets the number of workers, and therefore the maximum number
// of requests in flight. Defaults to 100.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMaxRetriesBySoftFail sets how many times an item may be retried after a
// SoftFail before it is reported as soft-exhausted. Defaults to 20.
func WithMaxRetriesBySoftFail(n int) Option {
	return func(o *options) {
		o.maxSoft = n
	}
}

// WithMaxRetriesByTimeout sets how many times an item may be retried after its
// request deadline elapsed before it is reported as timeout-exhausted. Defaults to 20.
func WithMaxRetriesByTimeout(n int) Option {
	return func(o *options) {
		o.maxTimeout = n
	}
}

// WithParser sets the function that turns a raw response into a result value.
// Its type parameters must match the Runner's, otherwise NewRunner fails.
// Without a parser the raw response itself is collected, which requires the
// response type to be assignable to the result type.
func WithParser[T, P, R any](p func(ctx context.Context, item T, resp P) (R, error)) Option {
	return func(o *options) {
		o.parser = Parser[T, P, R](p)
	}
}

// WithCallbacks sets the per-event callbacks. Its type parameters must match
// the Runner's, otherwise NewRunner fails.
func WithCallbacks[T, P any](cb Callbacks[T, P]) Option {
	return func(o *options) {
		o.callbacks = cb
	}
}

// WithStopConditions selects the events that halt the run.
func WithStopConditions(s StopConditions) Option {
	return func(o *options) {
		o.stop = s
	}
}

// WithQueueCapacity bounds the number of items read ahead of the workers.
// Zero makes the producer hand items to workers directly. Defaults to 100.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		o.queueCapacity = n
	}
}

// WithProgressBar enables progress output. It is off by default.
func WithProgressBar(enabled bool) Option {
	return func(o *options) {
		o.progress = enabled
	}
}

// WithProgressOutput sets where progress is written. Defaults to os.Stdout.
func WithProgressOutput(w io.Writer) Option {
	return func(o *options) {
		o.progressOut = w
	}
}

// WithProgressRenderer selects the progress style. Defaults to ProgressLine.
func WithProgressRenderer(style ProgressStyle) Option {
	return func(o *options) {
		o.progressStyle = style
	}
}

// WithEstimatedTotal sets the expected number of items, shown as "~n" until the
// input is exhausted.
func WithEstimatedTotal(n int64) Option {
	return func(o *options) {
		o.estimate = n
	}
}

// WithRequestTimeout sets the deadline of a single attempt, parsing included.
// Defaults to 30s.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = d
	}
}

// WithProgressThresholds sets how often progress is rendered: after every
// `count` completed items (0 disables count-triggered renders) and at least
// every `interval`. Defaults to 1 and 500ms. A zero interval is invalid.
func WithProgressThresholds(count int64, interval time.Duration) Option {
	return func(o *options) {
		o.countThreshold = count
		o.timeThreshold = interval
	}
}

// WithRetryBackoff inserts a pause between two attempts of the same item.
// There is no pause by default.
//
// Example:
//
//	WithRetryBackoff(BackoffJittered, 50*time.Millisecond, 2*time.Second)
func WithRetryBackoff(kind BackoffType, initial, maxDelay time.Duration) Option {
	return func(o *options) {
		o.backoffType = kind
		o.backoffInitial = initial
		o.backoffMax = maxDelay
	}
}

// WithRateLimit paces the producer to itemsPerSecond with the given burst.
// This is useful for preventing overwhelming the remote service.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 items/sec with burst of 5
func WithRateLimit(itemsPerSecond float64, burst int) Option {
	return func(o *options) {
		o.ratePerSecond = itemsPerSecond
		o.rateBurst = burst
		o.inputDelay = 0
	}
}

// WithInputDelay makes the producer wait d between two enqueues.
func WithInputDelay(d time.Duration) Option {
	return func(o *options) {
		o.inputDelay = d
		o.ratePerSecond = 0
		o.rateBurst = 0
	}
}

// WithObserver registers an observer of attempts and dispositions. It may be
// given several times.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger used for lifecycle events. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// config is the validated, immutable configuration of one Runner.
type config[T, P, R any] struct {
	concurrency    int
	maxSoft        int
	maxTimeout     int
	parser         Parser[T, P, R]
	callbacks      Callbacks[T, P]
	stop           StopConditions
	queueCapacity  int
	progress       bool
	progressOut    io.Writer
	progressStyle  ProgressStyle
	estimate       int64
	requestTimeout time.Duration
	countThreshold int64
	timeThreshold  time.Duration
	backoff        algorithms.BackoffStrategy
	limiter        *rate.Limiter
	observer       Observer
	logger         *slog.Logger
}

func defaultOptions() *options {
	return &options{
		concurrency:    defaultConcurrency,
		maxSoft:        defaultMaxRetries,
		maxTimeout:     defaultMaxRetries,
		queueCapacity:  defaultQueueCapacity,
		progressOut:    os.Stdout,
		requestTimeout: defaultRequestTimeout,
		countThreshold: defaultCountThreshold,
		timeThreshold:  defaultTimeThreshold,
		backoffMax:     defaultBackoffMax,
	}
}

func buildConfig[T, P, R any](opts []Option) (*config[T, P, R], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := o.validate(); err != nil {
		return nil, err
	}

	parser, err := resolveParser[T, P, R](o.parser)
	if err != nil {
		return nil, err
	}

	var callbacks Callbacks[T, P]
	if o.callbacks != nil {
		cb, ok := o.callbacks.(Callbacks[T, P])
		if !ok {
			return nil, &ConfigError{
				Field: "callbacks",
				Value: fmt.Sprintf("%T does not match item type %s and response type %s", o.callbacks, typeName[T](), typeName[P]()),
			}
		}
		callbacks = cb
	}

	var limiter *rate.Limiter
	switch {
	case o.ratePerSecond > 0:
		limiter = rate.NewLimiter(rate.Limit(o.ratePerSecond), o.rateBurst)
	case o.inputDelay > 0:
		limiter = rate.NewLimiter(rate.Every(o.inputDelay), 1)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var observer Observer = BaseObserver{}
	switch len(o.observers) {
	case 0:
	case 1:
		observer = o.observers[0]
	default:
		observer = MultiObserver(o.observers)
	}
	if len(o.observers) > 0 {
		observer = recoveringObserver{next: observer, logger: logger}
	}

	out := o.progressOut
	if out == nil {
		out = io.Discard
	}

	return &config[T, P, R]{
		concurrency:    o.concurrency,
		maxSoft:        o.maxSoft,
		maxTimeout:     o.maxTimeout,
		parser:         parser,
		callbacks:      callbacks,
		stop:           o.stop,
		queueCapacity:  o.queueCapacity,
		progress:       o.progress,
		progressOut:    out,
		progressStyle:  o.progressStyle,
		estimate:       o.estimate,
		requestTimeout: o.requestTimeout,
		countThreshold: o.countThreshold,
		timeThreshold:  o.timeThreshold,
		backoff:        algorithms.NewBackoffStrategy(o.backoffType, o.backoffInitial, o.backoffMax, defaultBackoffJitter),
		limiter:        limiter,
		observer:       observer,
		logger:         logger,
	}, nil
}

func (o *options) validate() error {
	switch {
	case o.concurrency < 1:
		return &ConfigError{Field: "concurrency", Value: o.concurrency}
	case o.maxSoft < 0:
		return &ConfigError{Field: "max retries by soft fail", Value: o.maxSoft}
	case o.maxTimeout < 0:
		return &ConfigError{Field: "max retries by timeout", Value: o.maxTimeout}
	case o.queueCapacity < 0:
		return &ConfigError{Field: "queue capacity", Value: o.queueCapacity}
	case o.estimate < 0:
		return &ConfigError{Field: "estimated total", Value: o.estimate}
	case o.requestTimeout <= 0:
		return &ConfigError{Field: "request timeout", Value: o.requestTimeout}
	case o.timeThreshold <= 0:
		return &ConfigError{Field: "progress time threshold", Value: o.timeThreshold}
	case o.countThreshold < 0:
		return &ConfigError{Field: "progress count threshold", Value: o.countThreshold}
	case o.progressStyle != ProgressLine && o.progressStyle != ProgressBar:
		return &ConfigError{Field: "progress style", Value: o.progressStyle}
	case o.backoffInitial < 0:
		return &ConfigError{Field: "retry backoff", Value: o.backoffInitial}
	case o.ratePerSecond < 0:
		return &ConfigError{Field: "rate limit", Value: o.ratePerSecond}
	case o.ratePerSecond > 0 && o.rateBurst < 1:
		return &ConfigError{Field: "rate limit burst", Value: o.rateBurst}
	case o.inputDelay < 0:
		return &ConfigError{Field: "input delay", Value: o.inputDelay}
	}
	return nil
}

// resolveParser returns the configured parser, or an identity parser when the
// response type can be collected as the result type directly.
func resolveParser[T, P, R any](p any) (Parser[T, P, R], error) {
	if p != nil {
		parser, ok := p.(Parser[T, P, R])
		if !ok {
			return nil, &ConfigError{
				Field: "parser",
				Value: fmt.Sprintf("%T does not match %s", p, typeName[Parser[T, P, R]]()),
			}
		}
		return parser, nil
	}

	if !reflect.TypeFor[P]().AssignableTo(reflect.TypeFor[R]()) {
		return nil, &ConfigError{
			Field: "parser",
			Value: fmt.Sprintf("required: response type %s is not assignable to result type %s", typeName[P](), typeName[R]()),
		}
	}

	return func(_ context.Context, _ T, resp P) (R, error) {
		r, _ := any(resp).(R)
		return r, nil
	}, nil
}

func typeName[X any]() string {
	return reflect.TypeFor[X]().String()
}
