package pool

import (
	"log/slog"
	"strings"
)

// Event is a disposition or retry event raised for an item.
type Event int

const (
	EventSuccess Event = iota
	EventSoftFail
	EventHardFail
	EventTimeout
	EventSoftExhausted
	EventTimeoutExhausted
)

func (e Event) String() string {
	switch e {
	case EventSuccess:
		return "success"
	case EventSoftFail:
		return "soft_fail"
	case EventHardFail:
		return "hard_fail"
	case EventTimeout:
		return "timeout"
	case EventSoftExhausted:
		return "soft_exhausted"
	case EventTimeoutExhausted:
		return "timeout_exhausted"
	default:
		return "unknown"
	}
}

// StopConditions selects the events that halt the whole run the first time
// they occur. Items already recorded are kept in the result; items in flight
// are abandoned.
type StopConditions struct {
	StopOnSuccess          bool
	StopOnSoftFail         bool
	StopOnHardFail         bool
	StopOnTimeout          bool
	StopOnSoftExhausted    bool
	StopOnTimeoutExhausted bool
}

// ShouldStop reports whether ev triggers an abort.
func (s StopConditions) ShouldStop(ev Event) bool {
	switch ev {
	case EventSuccess:
		return s.StopOnSuccess
	case EventSoftFail:
		return s.StopOnSoftFail
	case EventHardFail:
		return s.StopOnHardFail
	case EventTimeout:
		return s.StopOnTimeout
	case EventSoftExhausted:
		return s.StopOnSoftExhausted
	case EventTimeoutExhausted:
		return s.StopOnTimeoutExhausted
	default:
		return false
	}
}

// Any reports whether at least one condition is set.
func (s StopConditions) Any() bool {
	return s.StopOnSuccess || s.StopOnSoftFail || s.StopOnHardFail ||
		s.StopOnTimeout || s.StopOnSoftExhausted || s.StopOnTimeoutExhausted
}

// LogValue lists the enabled conditions by event name.
func (s StopConditions) LogValue() slog.Value {
	var on []string
	for ev := EventSuccess; ev <= EventTimeoutExhausted; ev++ {
		if s.ShouldStop(ev) {
			on = append(on, ev.String())
		}
	}
	return slog.StringValue(strings.Join(on, ","))
}
