package calc

import (
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned for an event whose kind is not recognised.
var ErrUnknownEvent = errors.New("unknown event kind")

// EventKind names one calculator input.
type EventKind string

const (
	EventDigit    EventKind = "digit"
	EventOperator EventKind = "operator"
	EventEquals   EventKind = "equals"
	EventClear    EventKind = "clear"
	EventPercent  EventKind = "percent"
	EventSign     EventKind = "sign"
)

// Event is one input delivered to a window, over REST or WebSocket.
// Digit carries the 0-9 value for digit events; Operator carries the
// symbol for operator events.
type Event struct {
	Kind     EventKind `json:"kind"`
	Digit    int       `json:"digit,omitempty"`
	Operator Operator  `json:"operator,omitempty"`
}

// Validate rejects events the state machine cannot dispatch. Unknown
// operator symbols pass validation: SetOperator treats them as a no-op.
func (e Event) Validate() error {
	switch e.Kind {
	case EventDigit:
		if e.Digit < 0 || e.Digit > 9 {
			return fmt.Errorf("%w: %d", ErrInvalidDigit, e.Digit)
		}
		return nil
	case EventOperator, EventEquals, EventClear, EventPercent, EventSign:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Kind)
	}
}
