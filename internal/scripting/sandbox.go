// Package scripting runs user Lua scripts in a GopherLua sandbox with a
// "dice" module bound to a dice.Roller.
package scripting

import (
	"context"
	"errors"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// script run when no limit is configured.
const DefaultInstructionLimit = 100_000

// ErrInstructionLimit is returned when a script runs past its opcode budget.
var ErrInstructionLimit = errors.New("scripting: instruction limit exceeded")

// opBudget is the context a sandboxed state runs under. GopherLua polls Done
// once per opcode, so every poll spends one unit; the context is cancelled
// when the budget hits zero or the caller's context ends.
type opBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
	spent  atomic.Bool
}

func newOpBudget(parent context.Context, ops int) *opBudget {
	ctx, cancel := context.WithCancel(parent)
	b := &opBudget{Context: ctx, cancel: cancel}
	b.left.Store(int64(ops))
	return b
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left.Add(-1) == 0 {
		b.spent.Store(true)
		b.cancel()
	}
	return b.Context.Done()
}

// exhausted reports whether the run was stopped by the budget rather than
// by the parent context.
func (b *opBudget) exhausted() bool { return b.spent.Load() }

// NewSandboxedState returns an LState for running one dice script. Only the
// base, table, string and math libraries are opened; file loading, require
// and collectgarbage are removed, and the state stops after instLimit
// opcodes (0 means DefaultInstructionLimit). The dice and log modules are
// not installed; Manager.RegisterModules does that.
//
// The caller must call the returned cancel func and L.Close when done.
func NewSandboxedState(instLimit int) (*lua.LState, context.CancelFunc) {
	L, budget := newSandboxedState(context.Background(), instLimit)
	return L, budget.cancel
}

func newSandboxedState(parent context.Context, instLimit int) (*lua.LState, *opBudget) {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	budget := newOpBudget(parent, instLimit)
	L.SetContext(budget)
	return L, budget
}
