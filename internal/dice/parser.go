package dice

import (
	"strconv"
)

// Parse parses a dice expression into an Expression.
//
// Grammar:
//
//	expression := ws term (ws "+" ws term)* ws EOF
//	term       := die | offset
//	die        := digits "d" digits
//	offset     := digits
//	ws         := (" " | "\t")*
//
// A term is tried as a die first and, failing that, as an offset. Parsing is
// pure: it never consults randomness and never validates side counts.
//
// Postcondition: Returns an Expression with at least one Term, or a
// *SyntaxError describing the furthest point parsing reached.
func Parse(text string) (Expression, error) {
	p := &parser{input: text, failAt: -1}

	p.spaces()
	first, ok := p.term()
	if !ok {
		return Expression{}, p.syntaxError()
	}
	terms := []Term{first}
	for {
		t, ok := p.attempt(p.plusTerm)
		if !ok {
			break
		}
		terms = append(terms, t)
	}
	p.spaces()
	if !p.eof() {
		p.fail(p.pos, "expected '+' or end of input")
		return Expression{}, p.syntaxError()
	}

	return Expression{Raw: text, Terms: terms}, nil
}

// MustParse parses text and panics on error. Useful for package-level values.
//
// Precondition: text must be a valid dice expression.
func MustParse(text string) Expression {
	e, err := Parse(text)
	if err != nil {
		panic("dice: MustParse failed for expression " + text + ": " + err.Error())
	}
	return e
}

// parser is a backtracking recursive-descent parser over a byte string.
// Every grammar function either succeeds and advances pos, or fails and
// leaves pos undefined; callers that need to retry rewind via attempt.
type parser struct {
	input string
	pos   int

	// Furthest failure seen so far, reported when the parse fails.
	failAt  int
	failMsg string
}

type termFunc func() (Term, bool)

// attempt runs fn and rewinds to the starting position if it fails.
func (p *parser) attempt(fn termFunc) (Term, bool) {
	start := p.pos
	t, ok := fn()
	if !ok {
		p.pos = start
	}
	return t, ok
}

// choice tries each alternative in order from the same starting position
// and returns the first success.
func (p *parser) choice(alts ...termFunc) (Term, bool) {
	for _, alt := range alts {
		if t, ok := p.attempt(alt); ok {
			return t, true
		}
	}
	return Term{}, false
}

func (p *parser) term() (Term, bool) {
	return p.choice(p.die, p.offset)
}

func (p *parser) plusTerm() (Term, bool) {
	p.spaces()
	if !p.literal('+') {
		return Term{}, false
	}
	p.spaces()
	return p.term()
}

func (p *parser) die() (Term, bool) {
	count, ok := p.number()
	if !ok {
		return Term{}, false
	}
	if !p.literal('d') {
		return Term{}, false
	}
	sides, ok := p.number()
	if !ok {
		return Term{}, false
	}
	return Die(count, sides), true
}

func (p *parser) offset() (Term, bool) {
	v, ok := p.number()
	if !ok {
		return Term{}, false
	}
	return Offset(v), true
}

// number consumes one or more ASCII digits as a uint64.
func (p *parser) number() (uint64, bool) {
	start := p.pos
	for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		p.fail(start, "expected digit")
		return 0, false
	}
	n, err := strconv.ParseUint(p.input[start:p.pos], 10, 64)
	if err != nil {
		p.fail(start, "number out of 64-bit range")
		return 0, false
	}
	return n, true
}

func (p *parser) literal(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	p.fail(p.pos, "expected '"+string(c)+"'")
	return false
}

func (p *parser) spaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) eof() bool {
	return p.pos == len(p.input)
}

// fail records a failure unless a failure further into the input is already
// known. Among failures at the same offset, the latest wins.
func (p *parser) fail(at int, msg string) {
	if at >= p.failAt {
		p.failAt = at
		p.failMsg = msg
	}
}

func (p *parser) syntaxError() *SyntaxError {
	return &SyntaxError{Input: p.input, Offset: p.failAt, Msg: p.failMsg}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
