// Package calc implements the calculator accumulator: a small state machine
// over a current value, a stored operand and one pending operator. All
// transitions are pure; callers keep the prior state when a transition
// returns an error.
package calc

import (
	"errors"
	"fmt"
)

var (
	// ErrDivisionByZero is returned when an evaluation divides by a zero
	// current value. The state is left untouched so the caller can recover.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrInvalidDigit is returned for digit input outside 0-9.
	ErrInvalidDigit = errors.New("digit out of range")
)

// Operator identifies one of the four arithmetic operations. The value is
// the display symbol so it survives JSON round-trips unchanged.
type Operator string

const (
	OpNone     Operator = ""
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "*"
	OpDivide   Operator = "/"
)

// known reports whether op is one of the four supported operators.
func (op Operator) known() bool {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return true
	}
	return false
}

// apply computes stored <op> current. Division by a zero current returns
// ErrDivisionByZero.
func (op Operator) apply(stored, current float64) (float64, error) {
	switch op {
	case OpAdd:
		return stored + current, nil
	case OpSubtract:
		return stored - current, nil
	case OpMultiply:
		return stored * current, nil
	case OpDivide:
		if current == 0 {
			return 0, ErrDivisionByZero
		}
		return stored / current, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

// State is one window's accumulator snapshot. The zero value is the
// freshly opened calculator.
type State struct {
	Current    float64  `json:"current"`
	Stored     float64  `json:"stored"`
	Pending    Operator `json:"pending"`
	FreshEntry bool     `json:"fresh_entry"`
	Expression string   `json:"expression"`
}

// NewState returns the default state of a newly opened window.
func NewState() State {
	return State{}
}

// Calculation is the outcome of a completed evaluation, recorded to
// history by the boundary.
type Calculation struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}
