// Package dice parses dice-notation expressions such as "4d20+10" and rolls
// them against an injected randomness Source.
package dice

import (
	"math/bits"
	"strconv"
	"strings"
)

// Kind distinguishes the two term variants.
type Kind int

const (
	// KindDie is a term of the form NdM.
	KindDie Kind = iota + 1
	// KindOffset is a constant term.
	KindOffset
)

// String returns "die" or "offset".
func (k Kind) String() string {
	switch k {
	case KindDie:
		return "die"
	case KindOffset:
		return "offset"
	default:
		return "unknown"
	}
}

// Term is one additive component of an Expression.
//
// Invariant: Count and Sides are meaningful only when Kind == KindDie;
// Value only when Kind == KindOffset.
type Term struct {
	Kind  Kind
	Count uint64 // number of dice; may be zero
	Sides uint64 // faces per die; must be >= 1 to validate
	Value uint64 // constant contribution
}

// Die returns a die term rolling count dice of the given sides.
func Die(count, sides uint64) Term {
	return Term{Kind: KindDie, Count: count, Sides: sides}
}

// Offset returns a constant term.
func Offset(value uint64) Term {
	return Term{Kind: KindOffset, Value: value}
}

// String renders the term in dice notation, e.g. "4d20" or "10".
func (t Term) String() string {
	if t.Kind == KindDie {
		return strconv.FormatUint(t.Count, 10) + "d" + strconv.FormatUint(t.Sides, 10)
	}
	return strconv.FormatUint(t.Value, 10)
}

// Max returns the largest contribution the term can make and whether it fits
// in 64 bits.
func (t Term) Max() (uint64, bool) {
	if t.Kind != KindDie {
		return t.Value, true
	}
	hi, lo := bits.Mul64(t.Count, t.Sides)
	return lo, hi == 0
}

// Expression is a parsed dice expression: the sum of its Terms.
//
// Invariant: len(Terms) >= 1 after a successful Parse.
type Expression struct {
	Raw   string // original input string
	Terms []Term
}

// String returns the canonical notation with no whitespace, e.g. "2d8+1".
func (e Expression) String() string {
	parts := make([]string, len(e.Terms))
	for i, t := range e.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, "+")
}

// Max returns the theoretical maximum total: the sum over die terms of
// Count*Sides plus every offset. ok is false when that value does not fit in
// 64 bits.
func (e Expression) Max() (total uint64, ok bool) {
	for _, t := range e.Terms {
		m, fits := t.Max()
		if !fits {
			return 0, false
		}
		var carry uint64
		total, carry = bits.Add64(total, m, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return total, true
}

// DiceCount returns the number of draws rolling e would make, saturating at
// the maximum uint64.
func (e Expression) DiceCount() uint64 {
	var n uint64
	for _, t := range e.Terms {
		if t.Kind != KindDie {
			continue
		}
		sum, carry := bits.Add64(n, t.Count, 0)
		if carry != 0 {
			return ^uint64(0)
		}
		n = sum
	}
	return n
}
