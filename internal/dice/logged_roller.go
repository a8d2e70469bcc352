package dice

import (
	"fmt"

	"go.uber.org/zap"
)

// Roller wraps a Source and logger to provide logged dice rolling for
// long-lived services. All rolls are logged at debug level with the
// expression, per-term draws and total; rejected input is logged at debug
// level with the cause.
//
// Roller is safe for concurrent use because Source implementations are.
type Roller struct {
	src     Source
	logger  *zap.Logger
	maxDice uint64
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to
// logger. maxDice bounds the number of draws one expression may make; 0, or
// anything above MaxRecordedDice, means MaxRecordedDice.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger, maxDice uint64) *Roller {
	if maxDice == 0 || maxDice > MaxRecordedDice {
		maxDice = MaxRecordedDice
	}
	return &Roller{src: src, logger: logger, maxDice: maxDice}
}

// Roll parses spec and rolls it, returning the full audit trail.
//
// Postcondition: Returns a RollResult, or a *RollError wrapping the cause.
func (r *Roller) Roll(spec string) (RollResult, error) {
	expr, err := Parse(spec)
	if err != nil {
		return RollResult{}, r.reject(spec, err)
	}
	return r.RollExpression(expr)
}

// RollExpression rolls an already parsed expression.
//
// Precondition: expr must come from Parse.
func (r *Roller) RollExpression(expr Expression) (RollResult, error) {
	if err := r.Check(expr); err != nil {
		return RollResult{}, r.reject(expr.Raw, err)
	}
	result, err := EvaluateDetailed(expr, r.src)
	if err != nil {
		return RollResult{}, r.reject(expr.Raw, err)
	}
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Int("terms", len(result.Terms)),
		zap.Uint64("dice", expr.DiceCount()),
		zap.Uint64("total", result.Total()),
	)
	return result, nil
}

// Check validates expr and applies the Roller's dice limit without rolling.
func (r *Roller) Check(expr Expression) error {
	if err := Validate(expr); err != nil {
		return err
	}
	if n := expr.DiceCount(); n > r.maxDice {
		return fmt.Errorf("%w: %d dice requested, limit is %d", ErrTooManyDice, n, r.maxDice)
	}
	return nil
}

// Validate parses spec and checks it as Check does.
//
// Postcondition: Returns nil or a *RollError wrapping the cause.
func (r *Roller) Validate(spec string) error {
	expr, err := Parse(spec)
	if err != nil {
		return r.reject(spec, err)
	}
	if err := r.Check(expr); err != nil {
		return r.reject(spec, err)
	}
	return nil
}

func (r *Roller) reject(spec string, err error) error {
	r.logger.Debug("dice roll rejected",
		zap.String("expression", spec),
		zap.Error(err),
	)
	return &RollError{Input: spec, Err: err}
}
