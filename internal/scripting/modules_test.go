package scripting_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceroll/internal/dice"
)

func TestDiceRoll_ReturnsTotal(t *testing.T) {
	mgr, logs := newTestManager(t, fixedSource{value: 0})
	results := run(t, mgr, `return dice.roll("0d6+4d5+10+2")`)
	assert.Equal(t, []lua.LValue{lua.LNumber(16)}, results)
	assert.Equal(t, 1, logs.FilterMessage("dice roll").Len(), "rolls go through the logged roller")
}

func TestDiceRoll_FailureReturnsNilAndMessage(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewCryptoSource())
	results := run(t, mgr, `
		local total, msg = dice.roll("6d8 + 2 2 + 5d6")
		assert(total == nil, "expected nil total")
		return msg
	`)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].String(), "expected '+' or end of input")
}

func TestDiceRoll_RespectsMaxDice(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewCryptoSource())
	results := run(t, mgr, `
		local total, msg = dice.roll("1001d6")
		return total, msg
	`)
	require.Len(t, results, 2)
	assert.Equal(t, lua.LNil, results[0])
	assert.Contains(t, results[1].String(), "too many dice")
}

func TestDiceRoll_RequiresString(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewCryptoSource())
	_, err := mgr.RunString(t.Context(), "bad.lua", `return dice.roll({})`)
	assert.Error(t, err)
}

func TestDiceRollText_ExactBeyondFloatPrecision(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSource{value: ^uint64(0)})
	results := run(t, mgr, `return dice.roll_text("18446744073709551614+1d1")`)
	assert.Equal(t, []lua.LValue{lua.LString("18446744073709551615")}, results)
}

func TestDiceDetail(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSource{value: 4})
	results := run(t, mgr, `
		local r = dice.detail("2d8+1")
		return r.total, r.text, #r.terms, r.terms[1].dice[2], r.terms[1].subtotal, r.terms[2].value
	`)
	assert.Equal(t, []lua.LValue{
		lua.LNumber(11),
		lua.LString("2d8+1 → [5 5] +1 = 11"),
		lua.LNumber(2),
		lua.LNumber(5),
		lua.LNumber(10),
		lua.LNumber(1),
	}, results)
}

func TestDiceParse(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewCryptoSource())
	results := run(t, mgr, `
		local terms = dice.parse("6d8 + 2 + 5d6")
		local out = {}
		for _, term in ipairs(terms) do
			if term.kind == "die" then
				table.insert(out, term.count .. "d" .. term.sides)
			else
				table.insert(out, tostring(term.value))
			end
		end
		return table.concat(out, ",")
	`)
	assert.Equal(t, []lua.LValue{lua.LString("6d8,2,5d6")}, results)
}

func TestDiceParse_DoesNotValidate(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewCryptoSource())
	results := run(t, mgr, `return dice.parse("1d0")[1].sides`)
	assert.Equal(t, []lua.LValue{lua.LNumber(0)}, results)
}

func TestDiceMax(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewCryptoSource())
	results := run(t, mgr, `
		local a = dice.max("4d20+10")
		local b, msg = dice.max("1d0")
		local c, overflow = dice.max("18446744073709551615+1")
		return a, b, msg, c, overflow
	`)
	require.Len(t, results, 5)
	assert.Equal(t, lua.LNumber(90), results[0])
	assert.Equal(t, lua.LNil, results[1])
	assert.Contains(t, results[2].String(), "too few sides")
	assert.Equal(t, lua.LNil, results[3])
	assert.Contains(t, results[4].String(), "64-bit")
}

func TestLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t, dice.NewCryptoSource())
	run(t, mgr, `
		log.debug("d")
		log.info("i")
		log.warn("w")
		log.error("e")
	`)

	levels := map[string]bool{}
	for _, e := range logs.All() {
		if e.ContextMap()["source"] == "lua" {
			levels[e.Level.String()] = true
		}
	}
	assert.True(t, levels[zap.DebugLevel.String()], "expected debug log")
	assert.True(t, levels[zap.InfoLevel.String()], "expected info log")
	assert.True(t, levels[zap.WarnLevel.String()], "expected warn log")
	assert.True(t, levels[zap.ErrorLevel.String()], "expected error log")
}

func TestProperty_DiceRoll_WithinMax(t *testing.T) {
	mgr, _ := newTestManager(t, dice.NewSeededSource(11))
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(0, 20).Draw(rt, "count")
		sides := rapid.IntRange(1, 100).Draw(rt, "sides")
		offset := rapid.IntRange(0, 1000).Draw(rt, "offset")
		results, err := mgr.RunString(t.Context(), "prop.lua", `
			local expr = string.format("%dd%d+%d", `+itoa(count)+`, `+itoa(sides)+`, `+itoa(offset)+`)
			return dice.roll(expr), dice.max(expr)
		`)
		if err != nil {
			rt.Fatalf("run: %v", err)
		}
		total, ceiling := results[0].(lua.LNumber), results[1].(lua.LNumber)
		if total < lua.LNumber(count+offset) || total > ceiling {
			rt.Fatalf("total %v outside [%d, %v]", total, count+offset, ceiling)
		}
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
