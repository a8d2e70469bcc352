package scripting

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroll/internal/dice"
)

// RegisterModules installs the "dice" and "log" global tables into L.
//
// Lua numbers are float64: totals above 2^53 lose precision through
// dice.roll and dice.max. dice.roll_text returns the exact decimal total.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: dice and log globals are defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	diceMod := L.NewTable()
	L.SetFuncs(diceMod, map[string]lua.LGFunction{
		"roll":      m.luaRoll,
		"roll_text": m.luaRollText,
		"detail":    m.luaDetail,
		"parse":     luaParse,
		"max":       luaMax,
	})
	L.SetGlobal("dice", diceMod)

	logMod := L.NewTable()
	L.SetFuncs(logMod, map[string]lua.LGFunction{
		"debug": m.luaLog(m.logger.Debug),
		"info":  m.luaLog(m.logger.Info),
		"warn":  m.luaLog(m.logger.Warn),
		"error": m.luaLog(m.logger.Error),
	})
	L.SetGlobal("log", logMod)
}

// fail pushes the Lua (nil, message) failure convention.
func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

// dice.roll(expr) -> number | nil, message
func (m *Manager) luaRoll(L *lua.LState) int {
	result, err := m.roller.Roll(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LNumber(result.Total()))
	return 1
}

// dice.roll_text(expr) -> string | nil, message
func (m *Manager) luaRollText(L *lua.LState) int {
	result, err := m.roller.Roll(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LString(strconv.FormatUint(result.Total(), 10)))
	return 1
}

// dice.detail(expr) -> {total=, text=, terms={...}} | nil, message
func (m *Manager) luaDetail(L *lua.LState) int {
	result, err := m.roller.Roll(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	terms := L.NewTable()
	for _, tr := range result.Terms {
		t := termTable(L, tr.Term)
		t.RawSetString("subtotal", lua.LNumber(tr.Subtotal))
		if tr.Term.Kind == dice.KindDie {
			draws := L.NewTable()
			for _, d := range tr.Dice {
				draws.Append(lua.LNumber(d))
			}
			t.RawSetString("dice", draws)
		}
		terms.Append(t)
	}
	out := L.NewTable()
	out.RawSetString("total", lua.LNumber(result.Total()))
	out.RawSetString("text", lua.LString(result.String()))
	out.RawSetString("terms", terms)
	L.Push(out)
	return 1
}

// dice.parse(expr) -> array of {kind=, count=, sides=, value=} | nil, message
func luaParse(L *lua.LState) int {
	expr, err := dice.Parse(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	out := L.NewTable()
	for _, t := range expr.Terms {
		out.Append(termTable(L, t))
	}
	L.Push(out)
	return 1
}

// dice.max(expr) -> number | nil, message
func luaMax(L *lua.LState) int {
	expr, err := dice.Parse(L.CheckString(1))
	if err != nil {
		return fail(L, err)
	}
	if err := dice.Validate(expr); err != nil {
		return fail(L, err)
	}
	total, _ := expr.Max()
	L.Push(lua.LNumber(total))
	return 1
}

func termTable(L *lua.LState, t dice.Term) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("kind", lua.LString(t.Kind.String()))
	if t.Kind == dice.KindDie {
		tbl.RawSetString("count", lua.LNumber(t.Count))
		tbl.RawSetString("sides", lua.LNumber(t.Sides))
	} else {
		tbl.RawSetString("value", lua.LNumber(t.Value))
	}
	return tbl
}

func (m *Manager) luaLog(write func(string, ...zap.Field)) lua.LGFunction {
	return func(L *lua.LState) int {
		write(L.CheckString(1), zap.String("source", "lua"))
		return 0
	}
}
