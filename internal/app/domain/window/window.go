// Package window carries the session bookkeeping for one calculator
// window: its identifier, lifecycle timestamps and the accumulator
// snapshot applied between events.
package window

import (
	"time"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
)

// Window is one logical calculator instance. LastSeenAt advances on every
// applied event so idle sessions can be expired.
type Window struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	State      calc.State `json:"state"`
}

// New returns a window with the default accumulator state.
func New(id string, now time.Time) Window {
	return Window{
		ID:         id,
		CreatedAt:  now.UTC(),
		LastSeenAt: now.UTC(),
		State:      calc.NewState(),
	}
}

// Touch records activity on the window.
func (w *Window) Touch(now time.Time) {
	w.LastSeenAt = now.UTC()
}
