package calc

import (
	"fmt"
	"strconv"
)

// InputDigit feeds one digit into the accumulator. A fresh entry replaces
// Current; otherwise the digit extends it in base ten. The digit's text is
// appended to the expression either way.
func (s State) InputDigit(d int) (State, error) {
	if d < 0 || d > 9 {
		return s, fmt.Errorf("%w: %d", ErrInvalidDigit, d)
	}
	next := s
	if next.FreshEntry {
		next.Current = float64(d)
		next.FreshEntry = false
	} else {
		next.Current = next.Current*10 + float64(d)
	}
	next.Expression += strconv.Itoa(d)
	return next, nil
}

// SetOperator captures op as the pending operator. When an operator is
// already pending and a second operand has been entered, the pending
// operation is evaluated first, giving left-to-right chaining without
// precedence. Unknown symbols are a no-op.
func (s State) SetOperator(op Operator) (State, error) {
	if !op.known() {
		return s, nil
	}
	next := s
	if next.Pending != OpNone && !next.FreshEntry {
		chained, err := next.Pending.apply(next.Stored, next.Current)
		if err != nil {
			return s, err
		}
		next.Current = chained
	}
	next.Stored = next.Current
	next.Pending = op
	next.FreshEntry = true
	next.Expression += " " + string(op) + " "
	return next, nil
}

// Evaluate applies the pending operator to Stored and Current. With no
// pending operator it is a no-op. On success the result becomes Current,
// the expression resets, and the completed calculation is returned for
// history. Division by a zero Current returns ErrDivisionByZero and the
// prior state, never a silent zero.
func (s State) Evaluate() (State, *Calculation, error) {
	if s.Pending == OpNone {
		return s, nil, nil
	}
	result, err := s.Pending.apply(s.Stored, s.Current)
	if err != nil {
		return s, nil, err
	}
	var done *Calculation
	if s.Expression != "" {
		done = &Calculation{Expression: s.Expression, Result: result}
	}
	next := s
	next.Current = result
	next.Pending = OpNone
	next.FreshEntry = true
	next.Expression = ""
	return next, done, nil
}

// Clear resets the window to its just-opened state.
func (s State) Clear() State {
	return NewState()
}

// Percent divides Current by one hundred. Nothing else changes, so two
// presses divide by ten thousand.
func (s State) Percent() State {
	next := s
	next.Current = next.Current / 100
	return next
}

// ToggleSign negates Current. Applying it twice restores the original
// value.
func (s State) ToggleSign() State {
	next := s
	next.Current = -next.Current
	return next
}

// Apply dispatches one event to the matching transition. The returned
// calculation is non-nil only when an equals event completed an
// expression.
func Apply(s State, ev Event) (State, *Calculation, error) {
	if err := ev.Validate(); err != nil {
		return s, nil, err
	}
	switch ev.Kind {
	case EventDigit:
		next, err := s.InputDigit(ev.Digit)
		return next, nil, err
	case EventOperator:
		next, err := s.SetOperator(ev.Operator)
		return next, nil, err
	case EventEquals:
		return s.Evaluate()
	case EventClear:
		return s.Clear(), nil, nil
	case EventPercent:
		return s.Percent(), nil, nil
	case EventSign:
		return s.ToggleSign(), nil, nil
	}
	return s, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
}
