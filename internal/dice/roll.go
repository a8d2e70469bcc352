package dice

import (
	"fmt"
	"strconv"
)

// Source kinds accepted by NewSource.
const (
	SourceCrypto = "crypto"
	SourceSeeded = "seeded"
)

// Roll parses, validates and rolls spec in a single call.
//
// Precondition: src must be non-nil.
// Postcondition: Returns the total, or a *RollError wrapping the
// *SyntaxError, *ValidationError or ErrOverflow that stopped it. No partial
// result is ever returned.
func Roll(spec string, src Source) (uint64, error) {
	expr, err := Parse(spec)
	if err != nil {
		return 0, &RollError{Input: spec, Err: err}
	}
	total, err := Evaluate(expr, src)
	if err != nil {
		return 0, &RollError{Input: spec, Err: err}
	}
	return total, nil
}

// RollText is the text-in/text-out form of Roll for hosts that only exchange
// strings. It returns the decimal total on success and "" on any failure;
// callers needing the reason should use Roll.
func RollText(spec string, src Source) string {
	total, err := Roll(spec, src)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(total, 10)
}

// NewSource builds a Source by kind: SourceCrypto ignores seed, SourceSeeded
// uses it.
//
// Postcondition: Returns a non-nil Source or an error naming the unknown kind.
func NewSource(kind string, seed uint64) (Source, error) {
	switch kind {
	case SourceCrypto:
		return NewCryptoSource(), nil
	case SourceSeeded:
		return NewSeededSource(seed), nil
	default:
		return nil, fmt.Errorf("dice: unknown source kind %q", kind)
	}
}
