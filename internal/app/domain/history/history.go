// Package history defines the persisted record of a completed calculation.
package history

import "time"

// Record is one completed calculation, appended when an equals event
// closes out an expression. Records are immutable once written and are
// listed most-recent-first per window.
type Record struct {
	ID         string    `json:"id" db:"id"`
	WindowID   string    `json:"window_id" db:"window_id"`
	Expression string    `json:"expression" db:"expression"`
	Result     float64   `json:"result" db:"result"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
