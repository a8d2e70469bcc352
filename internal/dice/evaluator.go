package dice

import (
	"fmt"
	"strings"
)

// Validate checks the semantic constraints of expr without consuming
// randomness.
//
// The first die term with zero sides yields a *ValidationError. An expression
// whose theoretical maximum does not fit in 64 bits yields ErrOverflow, which
// guarantees that rolling a validated expression can never overflow.
func Validate(expr Expression) error {
	for i, t := range expr.Terms {
		if t.Kind == KindDie && t.Sides < 1 {
			return &ValidationError{Term: i, Sides: t.Sides}
		}
	}
	if _, ok := expr.Max(); !ok {
		return fmt.Errorf("%w: %s", ErrOverflow, expr.String())
	}
	return nil
}

// Evaluate validates expr and rolls it against src, returning the total.
//
// Each die term draws exactly Count values uniformly from [1, Sides], in term
// order. Offsets contribute their value unchanged.
//
// Precondition: src must be non-nil.
// Postcondition: On success, the total lies between the sum of counts plus
// offsets and expr.Max().
func Evaluate(expr Expression, src Source) (uint64, error) {
	if err := Validate(expr); err != nil {
		return 0, err
	}
	var total uint64
	for _, t := range expr.Terms {
		sub, _ := rollTerm(t, src, false)
		total += sub
	}
	return total, nil
}

// MaxRecordedDice is the most draws EvaluateDetailed will keep for one
// expression. It is also the ceiling every Roller enforces.
const MaxRecordedDice uint64 = 1 << 20

// EvaluateDetailed is Evaluate keeping every individual draw. Expressions
// with more than MaxRecordedDice dice are rejected with ErrTooManyDice before
// any draw.
func EvaluateDetailed(expr Expression, src Source) (RollResult, error) {
	if err := Validate(expr); err != nil {
		return RollResult{}, err
	}
	if n := expr.DiceCount(); n > MaxRecordedDice {
		return RollResult{}, fmt.Errorf("%w: %d dice requested, limit is %d", ErrTooManyDice, n, MaxRecordedDice)
	}
	rolls := make([]TermRoll, len(expr.Terms))
	for i, t := range expr.Terms {
		sub, draws := rollTerm(t, src, true)
		rolls[i] = TermRoll{Term: t, Dice: draws, Subtotal: sub}
	}
	text := expr.Raw
	if text == "" {
		text = expr.String()
	}
	return RollResult{Expression: text, Terms: rolls}, nil
}

// rollTerm computes one term's contribution.
//
// Precondition: t has passed Validate.
func rollTerm(t Term, src Source, keep bool) (uint64, []uint64) {
	if t.Kind == KindOffset {
		return t.Value, nil
	}
	var draws []uint64
	if keep {
		draws = make([]uint64, 0, min(t.Count, 64))
	}
	var sum uint64
	for i := uint64(0); i < t.Count; i++ {
		v := src.Uint64n(t.Sides) + 1
		sum += v
		if keep {
			draws = append(draws, v)
		}
	}
	return sum, draws
}

// TermRoll is the outcome of one term within a RollResult.
type TermRoll struct {
	Term     Term
	Dice     []uint64 // individual draws; nil for offsets
	Subtotal uint64
}

// RollResult holds the full audit trail for a single expression evaluation.
//
// Postcondition: Total() == sum of every TermRoll.Subtotal.
type RollResult struct {
	Expression string // original expression string, e.g. "2d8+1"
	Terms      []TermRoll
}

// Total returns the sum of all term subtotals.
func (r RollResult) Total() uint64 {
	var total uint64
	for _, t := range r.Terms {
		total += t.Subtotal
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2d8+1 → [3 5] +1 = 9"
//
// An empty Expression is rendered from the terms in canonical form.
func (r RollResult) String() string {
	text := r.Expression
	if text == "" {
		expr := Expression{Terms: make([]Term, len(r.Terms))}
		for i, t := range r.Terms {
			expr.Terms[i] = t.Term
		}
		text = expr.String()
	}
	parts := make([]string, len(r.Terms))
	for i, t := range r.Terms {
		if t.Term.Kind == KindOffset {
			parts[i] = fmt.Sprintf("+%d", t.Subtotal)
			continue
		}
		parts[i] = fmt.Sprintf("%v", t.Dice)
	}
	return fmt.Sprintf("%s → %s = %d", text, strings.Join(parts, " "), r.Total())
}
