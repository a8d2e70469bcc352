// Package main provides the roll command-line tool. It rolls dice
// expressions given as arguments, read from stdin, typed at an interactive
// prompt, or driven by a Lua script, locally or through a remote rolld.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroll/internal/config"
	"github.com/cory-johannsen/diceroll/internal/dice"
	"github.com/cory-johannsen/diceroll/internal/frontend/handlers"
	"github.com/cory-johannsen/diceroll/internal/frontend/telnet"
	"github.com/cory-johannsen/diceroll/internal/observability"
	"github.com/cory-johannsen/diceroll/internal/preset"
	"github.com/cory-johannsen/diceroll/internal/rollservice"
	"github.com/cory-johannsen/diceroll/internal/scripting"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds the wiring shared by every input mode.
type cli struct {
	roller  *dice.Roller
	presets *preset.Book
	remote  *rollservice.Client
	detail  bool
	logger  *zap.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("roll", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file; empty uses defaults and DICE_* environment")
	repeat := fs.Int("n", 1, "roll each expression this many times")
	detail := fs.Bool("detail", false, "print every die drawn, not just the total")
	remote := fs.String("remote", "", "roll through the rolld gRPC service at host:port")
	script := fs.String("script", "", "run a Lua script with the dice module")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: roll [flags] [expression|preset ...]\n\n")
		fmt.Fprintf(stderr, "With no expressions, reads one expression per line from stdin.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *repeat < 1 {
		fmt.Fprintln(stderr, "roll: -n must be at least 1")
		return 2
	}
	if *remote != "" && (*detail || *script != "") {
		fmt.Fprintln(stderr, "roll: -remote cannot be combined with -detail or -script")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "roll: loading config: %v\n", err)
		return 1
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "roll: initializing logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	src, err := dice.NewSource(cfg.Dice.Source, cfg.Dice.Seed)
	if err != nil {
		logger.Error("creating randomness source", zap.Error(err))
		return 1
	}

	c := &cli{
		roller: dice.NewLoggedRoller(src, logger, cfg.Dice.MaxDice),
		detail: *detail,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}

	if cfg.Presets.Path != "" {
		book, err := preset.LoadFile(cfg.Presets.Path)
		if err != nil {
			logger.Error("loading presets", zap.String("path", cfg.Presets.Path), zap.Error(err))
			return 1
		}
		c.presets = book
	}

	if *remote != "" {
		client, err := rollservice.Dial(*remote)
		if err != nil {
			logger.Error("connecting to roll service", zap.String("addr", *remote), zap.Error(err))
			return 1
		}
		defer client.Close()
		c.remote = client
	}

	switch {
	case *script != "":
		mgr := scripting.NewManager(c.roller, logger, cfg.Scripting.InstructionLimit)
		return c.runScript(ctx, mgr, *script)
	case fs.NArg() > 0:
		return c.rollArgs(ctx, fs.Args(), *repeat)
	case isTerminal(stdin):
		return c.repl(ctx, stdin, isTerminal(stdout))
	default:
		return c.batch(ctx, stdin)
	}
}

// rollOne rolls spec, resolving preset names first, and renders the result.
func (c *cli) rollOne(ctx context.Context, spec string) (string, error) {
	if p, ok := c.presets.Lookup(spec); ok {
		spec = p.Expression.String()
	}
	if c.remote != nil {
		total, err := c.remote.Roll(ctx, spec)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(total, 10), nil
	}
	result, err := c.roller.Roll(spec)
	if err != nil {
		return "", err
	}
	if c.detail {
		return result.String(), nil
	}
	return strconv.FormatUint(result.Total(), 10), nil
}

// rollArgs rolls every argument n times. A failed expression is reported
// on stderr and makes the exit code 1; later arguments are still rolled.
func (c *cli) rollArgs(ctx context.Context, specs []string, n int) int {
	code := 0
	for _, spec := range specs {
		for i := 0; i < n; i++ {
			out, err := c.rollOne(ctx, spec)
			if err != nil {
				fmt.Fprintf(c.stderr, "roll: %v\n", err)
				code = 1
				break
			}
			fmt.Fprintln(c.stdout, out)
		}
	}
	return code
}

// batch prints one line per input line: the result, or an empty line when
// the input does not roll.
func (c *cli) batch(ctx context.Context, stdin io.Reader) int {
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return 1
		}
		out, err := c.rollOne(ctx, scanner.Text())
		if err != nil {
			c.logger.Debug("input line rejected", zap.String("line", scanner.Text()), zap.Error(err))
		}
		fmt.Fprintln(c.stdout, out)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(c.stderr, "roll: reading stdin: %v\n", err)
		return 1
	}
	return 0
}

// repl runs the interactive console. Locally it shares the telnet console's
// command set; against a remote service it only rolls expressions.
func (c *cli) repl(ctx context.Context, stdin io.Reader, color bool) int {
	handler := handlers.NewRollHandler(c.roller, c.presets, c.logger)
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(c.stdout, handlers.Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.stdout)
			return 0
		}
		if ctx.Err() != nil {
			return 1
		}

		var reply string
		quit := false
		if c.remote != nil {
			out, err := c.rollOne(ctx, scanner.Text())
			if err != nil {
				out = telnet.Colorize(telnet.Red, err.Error())
			}
			reply = out
		} else {
			reply, quit = handler.Respond(scanner.Text())
		}

		if reply != "" {
			reply = strings.ReplaceAll(reply, "\r\n", "\n")
			if !color {
				reply = telnet.StripANSI(reply)
			}
			fmt.Fprintln(c.stdout, reply)
		}
		if quit {
			return 0
		}
	}
}

// runScript runs a Lua file and prints each value it returns on its own line.
func (c *cli) runScript(ctx context.Context, mgr *scripting.Manager, path string) int {
	results, err := mgr.RunFile(ctx, path)
	if err != nil {
		fmt.Fprintf(c.stderr, "roll: %v\n", err)
		return 1
	}
	for _, v := range results {
		fmt.Fprintln(c.stdout, v.String())
	}
	return 0
}

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
