package pool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyRun is returned when Run is called a second time on the same Runner.
	ErrAlreadyRun = errors.New("pool: runner already run")

	// ErrTimeout may be returned by a Transport to signal that the request
	// deadline elapsed. Context deadline errors and net.Error timeouts are
	// recognised as well.
	ErrTimeout = errors.New("pool: request timed out")

	// errAborted is the cancellation cause of a run halted by a stop condition.
	errAborted = errors.New("pool: run aborted by stop condition")
)

// Stage names the step of an item's lifecycle in which an unexpected failure happened.
type Stage string

const (
	StageSource    Stage = "source"
	StageTransport Stage = "transport"
	StageClassify  Stage = "classify"
	StageParse     Stage = "parse"
	StageCallback  Stage = "callback"
)

// ItemError is an unexpected failure tied to one item (or to the input source,
// in which case Item is nil).
type ItemError struct {
	Item  any
	Stage Stage
	Err   error
}

func (e *ItemError) Error() string {
	if e.Item == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed for item %v: %v", e.Stage, e.Item, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// RunError aggregates every unexpected failure observed while a run was
// being cancelled. The partial result is returned alongside it.
type RunError struct {
	Failures []*ItemError
}

func (e *RunError) Error() string {
	if len(e.Failures) == 1 {
		return "pool: run failed: " + e.Failures[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "pool: run failed with %d errors:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// ConfigError reports an invalid option passed to NewRunner.
type ConfigError struct {
	Field string
	Value any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pool: invalid %s: %v", e.Field, e.Value)
}
