package pool

import (
	"context"
	"log/slog"
)

// Outcome is the classification of a single transport response.
type Outcome int

const (
	// Success records the item as succeeded. It is never retried.
	Success Outcome = iota
	// SoftFail marks a transient failure; the item is retried until its
	// soft-fail budget runs out.
	SoftFail
	// HardFail records the item as permanently failed. It is never retried.
	HardFail
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SoftFail:
		return "soft_fail"
	case HardFail:
		return "hard_fail"
	default:
		return "unknown"
	}
}

// Transport performs one outbound operation for an item. It must honour ctx:
// the per-request deadline is carried by it.
//
// Type parameters:
//   - T: The request item type
//   - P: The raw response type
type Transport[T, P any] interface {
	Perform(ctx context.Context, item T) (P, error)
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc[T, P any] func(ctx context.Context, item T) (P, error)

func (f TransportFunc[T, P]) Perform(ctx context.Context, item T) (P, error) {
	return f(ctx, item)
}

// Releaser may be implemented by a Transport whose responses hold resources.
// Release is called once per response, after parsing and callbacks.
type Releaser[P any] interface {
	Release(resp P)
}

// Classifier maps a raw response to an Outcome. A returned error is an
// unexpected failure and cancels the run.
type Classifier[P any] func(resp P) (Outcome, error)

// Parser turns a raw response into the value collected in the result. It runs
// under the same deadline as the request and may read the response again.
type Parser[T, P, R any] func(ctx context.Context, item T, resp P) (R, error)

// Callbacks are invoked synchronously by the worker that owns the item. Any
// returned error, or a panic, is an unexpected failure and cancels the run.
// Nil fields are skipped.
type Callbacks[T, P any] struct {
	OnSuccess  func(item T, resp P) error
	OnHardFail func(item T, resp P) error

	// OnSoftFail and OnTimeout receive the number of retries already spent
	// in that category before this failure.
	OnSoftFail func(item T, retries int) error
	OnTimeout  func(item T, retries int) error

	OnSoftExhausted    func(item T) error
	OnTimeoutExhausted func(item T) error
}

// Stats are the counters of a run.
type Stats struct {
	Success          int64 `json:"success"`
	Failed           int64 `json:"failed"`
	SoftRetries      int64 `json:"soft_retries"`
	TimeoutRetries   int64 `json:"timeout_retries"`
	SoftExhausted    int64 `json:"soft_exhausted"`
	TimeoutExhausted int64 `json:"timeout_exhausted"`
	Seen             int64 `json:"seen"`
}

// Done is the number of items that reached a terminal disposition.
func (s Stats) Done() int64 {
	return s.Success + s.Failed + s.SoftExhausted + s.TimeoutExhausted
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("seen", s.Seen),
		slog.Int64("success", s.Success),
		slog.Int64("failed", s.Failed),
		slog.Int64("soft_exhausted", s.SoftExhausted),
		slog.Int64("timeout_exhausted", s.TimeoutExhausted),
		slog.Int64("soft_retries", s.SoftRetries),
		slog.Int64("timeout_retries", s.TimeoutRetries),
	)
}

// Result is the immutable snapshot returned by Run.
//
// Type parameters:
//   - T: The request item type; exhausted items are reported as-is
//   - R: The parsed value type
//
// Fields:
//   - Success: Parsed values of items classified as Success
//   - Failed: Parsed values of items classified as HardFail
//   - SoftExhausted: Items whose soft-fail budget ran out
//   - TimeoutExhausted: Items whose timeout budget ran out
//   - Stats: The run's counters
type Result[T, R any] struct {
	Success          []R
	Failed           []R
	SoftExhausted    []T
	TimeoutExhausted []T
	Stats            Stats
}

// Phase is the lifecycle stage of a Runner.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseRunning
	PhaseDraining
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}
