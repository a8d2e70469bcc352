package dice

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when an expression's theoretical maximum total does
// not fit in 64 bits. Such expressions are rejected before any die is rolled.
var ErrOverflow = errors.New("dice: maximum total exceeds 64-bit range")

// ErrTooManyDice is returned by a Roller configured with a dice limit when an
// expression would draw more dice than allowed.
var ErrTooManyDice = errors.New("dice: too many dice")

// SyntaxError reports input that does not match the dice grammar.
type SyntaxError struct {
	Input  string // original text
	Offset int    // byte offset at which parsing failed
	Msg    string // what was expected or found
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("dice: failed to parse %q: %s at offset %d", e.Input, e.Msg, e.Offset)
}

// ValidationError reports a well-formed die term that cannot be rolled.
type ValidationError struct {
	Term  int    // zero-based index of the offending term
	Sides uint64 // the offending side count
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dice: too few sides: %d (term %d)", e.Sides, e.Term+1)
}

// RollError is the single failure returned by Roll. It carries the original
// input and wraps the underlying *SyntaxError, *ValidationError, ErrOverflow
// or ErrTooManyDice.
type RollError struct {
	Input string
	Err   error
}

func (e *RollError) Error() string {
	return fmt.Sprintf("dice: rolling %q: %v", e.Input, e.Err)
}

func (e *RollError) Unwrap() error { return e.Err }
