package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"time"
)

// guard runs fn and converts a panic into an error carrying the stack trace,
// so user code cannot crash a worker.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()
	return fn()
}

// isTimeout reports whether err from the given stage means the attempt's own
// deadline elapsed. Callers must rule out cancellation of the run itself first.
// The classifier never sees the deadline, so only its error counts there.
func isTimeout(attemptCtx context.Context, stage Stage, err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return stage != StageClassify && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
}

// sleepCtx waits for d, returning false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
