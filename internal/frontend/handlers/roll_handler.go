// Package handlers implements the Telnet roll console session.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroll/internal/dice"
	"github.com/cory-johannsen/diceroll/internal/frontend/telnet"
	"github.com/cory-johannsen/diceroll/internal/preset"
)

// Prompt is printed before each input line.
const Prompt = "roll> "

const welcomeBanner = "\r\n" +
	telnet.Bold + "Dice roller" + telnet.Reset + "\r\n" +
	"Type an expression such as " + telnet.Cyan + "4d20+10" + telnet.Reset +
	", a preset name, " + telnet.Cyan + "help" + telnet.Reset + " or " + telnet.Cyan + "quit" + telnet.Reset + ".\r\n\r\n"

const helpText = `Expressions are sums of terms joined by '+':
  NdM   roll N dice with M sides each (N may be 0, M must be at least 1)
  K     add the constant K
Spaces and tabs around '+' are ignored. Examples: 1d6, 4d20+10, 6d8 + 2 + 5d6
Commands:
  roll <expr>   same as typing <expr>
  presets       list named rolls
  help          show this text
  quit          leave`

// RollHandler runs the interactive roll console for one Telnet session.
// It is safe to share across sessions.
type RollHandler struct {
	roller  *dice.Roller
	presets *preset.Book
	logger  *zap.Logger
}

// NewRollHandler creates a RollHandler.
//
// Precondition: roller and logger must be non-nil; presets may be nil.
func NewRollHandler(roller *dice.Roller, presets *preset.Book, logger *zap.Logger) *RollHandler {
	return &RollHandler{roller: roller, presets: presets, logger: logger}
}

// HandleSession runs the prompt/evaluate loop until the client quits, the
// connection fails, or ctx is cancelled.
func (h *RollHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	if err := conn.WritePrompt(welcomeBanner); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	lines := 0
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		default:
		}

		if err := conn.WritePrompt(Prompt); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}
		line, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		reply, quit := h.Respond(line)
		if reply != "" {
			if err := conn.WriteLine(reply); err != nil {
				return fmt.Errorf("writing reply: %w", err)
			}
		}
		if quit {
			h.logger.Info("client quit",
				zap.String("session_id", conn.ID),
				zap.Int("lines", lines),
				zap.Duration("session_duration", time.Since(start)),
			)
			return nil
		}
		lines++
	}
}

// Respond computes the console reply to one input line. quit reports that
// the session should end after the reply is written.
func (h *RollHandler) Respond(line string) (reply string, quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return "", false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return telnet.Colorize(telnet.Cyan, "Goodbye!"), true
	case "help":
		return strings.ReplaceAll(helpText, "\n", "\r\n"), false
	case "presets":
		return h.listPresets(), false
	case "roll":
		spec := strings.TrimLeft(rest, " ")
		column := len(Prompt) + strings.Index(line, input) + len(input) - len(spec)
		return h.roll(spec, column), false
	}

	if p, ok := h.presets.Lookup(input); ok {
		result, err := h.roller.RollExpression(p.Expression)
		if err != nil {
			return telnet.Colorize(telnet.Red, describe(err)), false
		}
		return telnet.Colorize(telnet.Green, p.Name+": "+result.String()), false
	}
	return h.roll(line, len(Prompt)), false
}

// roll evaluates spec. column is where spec begins on the client's screen,
// used to point at syntax errors.
func (h *RollHandler) roll(spec string, column int) string {
	result, err := h.roller.Roll(spec)
	if err != nil {
		var se *dice.SyntaxError
		if errors.As(err, &se) {
			return strings.Repeat(" ", column+se.Offset) + telnet.Colorize(telnet.Red, "^") + "\r\n" +
				telnet.Colorize(telnet.Red, describe(err))
		}
		return telnet.Colorize(telnet.Red, describe(err))
	}
	return telnet.Colorize(telnet.Green, result.String())
}

func (h *RollHandler) listPresets() string {
	all := h.presets.All()
	if len(all) == 0 {
		return telnet.Colorize(telnet.Dim, "No presets loaded.")
	}
	lines := make([]string, 0, len(all))
	for _, p := range all {
		entry := fmt.Sprintf("  %-16s %s", p.Name, p.Expression.String())
		if p.Description != "" {
			entry += telnet.Colorize(telnet.Dim, "  "+p.Description)
		}
		lines = append(lines, entry)
	}
	return strings.Join(lines, "\r\n")
}

// describe renders a roll failure without the package prefixes.
func describe(err error) string {
	var se *dice.SyntaxError
	var ve *dice.ValidationError
	switch {
	case errors.As(err, &se):
		return "syntax error: " + se.Msg + fmt.Sprintf(" (column %d)", se.Offset+1)
	case errors.As(err, &ve):
		return fmt.Sprintf("invalid die in term %d: too few sides: %d", ve.Term+1, ve.Sides)
	case errors.Is(err, dice.ErrTooManyDice):
		return "too many dice in one roll"
	case errors.Is(err, dice.ErrOverflow):
		return "the largest possible total does not fit in 64 bits"
	default:
		return err.Error()
	}
}
