package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroll/internal/dice"
)

// Manager runs Lua scripts against a shared dice.Roller.
//
// Every run gets its own sandboxed LState, so Manager is safe for concurrent
// use; the Roller serializes access to its Source.
type Manager struct {
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0 (0 uses
// DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	return &Manager{
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// RunFile executes the Lua file at path and returns the values the chunk
// returns.
//
// Precondition: path must name a readable file.
// Postcondition: Returns the chunk's return values, or an error on read
// failure, Lua error, instruction limit, or ctx cancellation.
func (m *Manager) RunFile(ctx context.Context, path string) ([]lua.LValue, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	return m.RunString(ctx, filepath.Base(path), string(src))
}

// RunString executes src as a Lua chunk named name and returns the values
// the chunk returns.
//
// Postcondition: Returns the chunk's return values, or an error on Lua
// error, instruction limit (ErrInstructionLimit), or ctx cancellation
// (ctx.Err()).
func (m *Manager) RunString(ctx context.Context, name, src string) ([]lua.LValue, error) {
	start := time.Now()
	L, budget := newSandboxedState(ctx, m.instLimit)
	defer func() {
		budget.cancel()
		L.Close()
	}()
	m.RegisterModules(L)

	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("scripting: compiling %q: %w", name, err)
	}

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		switch {
		case budget.exhausted():
			m.logger.Warn("scripting: instruction limit exceeded", zap.String("script", name))
			return nil, fmt.Errorf("scripting: running %q: %w", name, ErrInstructionLimit)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("scripting: running %q: %w", name, ctx.Err())
		}
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("script", name),
			zap.Error(err),
		)
		return nil, fmt.Errorf("scripting: running %q: %w", name, err)
	}

	n := L.GetTop()
	results := make([]lua.LValue, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, L.Get(i))
	}
	L.Pop(n)

	m.logger.Debug("script finished",
		zap.String("script", name),
		zap.Int("results", n),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}
