// Package console is the headless front end: a readline prompt that drives
// the control loop with typed commands.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/chzyer/readline"

	"github.com/MrWong99/micengine/internal/app"
	"github.com/MrWong99/micengine/internal/health"
	"github.com/MrWong99/micengine/pkg/audio"
)

// Controller is the part of [app.App] the console drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Toggle(ctx context.Context) error
	ResetCapture()
	Status() app.Status
}

var commands = []string{"start", "stop", "toggle", "status", "reset", "help", "quit"}

// Console reads commands from a readline prompt.
type Console struct {
	ctrl    Controller
	health  *health.Handler
	display *Display
}

// New returns a Console. hc may be nil, in which case status omits the
// readiness report.
func New(ctrl Controller, hc *health.Handler, display *Display) *Console {
	return &Console{ctrl: ctrl, health: hc, display: display}
}

// NewReadline returns a readline instance with command completion.
func NewReadline() (*readline.Instance, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		items = append(items, readline.PcItem(c))
	}
	return readline.NewEx(&readline.Config{
		Prompt:          "micengine> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
}

// Run reads commands until quit, EOF, interrupt or ctx cancellation.
func (c *Console) Run(ctx context.Context, rl *readline.Instance) error {
	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	out := rl.Stdout()
	c.Exec(ctx, out, "help")
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("console: read: %w", err)
		}
		if quit := c.Exec(ctx, out, line); quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
// Errors from the controller are printed, not returned.
func (c *Console) Exec(ctx context.Context, w io.Writer, line string) (quit bool) {
	cmd := strings.ToLower(strings.TrimSpace(line))
	switch cmd {
	case "":
	case "start":
		report(w, c.ctrl.Start(ctx))
	case "stop":
		c.ctrl.Stop()
	case "toggle":
		report(w, c.ctrl.Toggle(ctx))
	case "status":
		c.status(ctx, w)
	case "reset":
		c.ctrl.ResetCapture()
		fmt.Fprintln(w, "microphone cooldown cleared")
	case "help", "?":
		fmt.Fprintln(w, "commands: "+strings.Join(commands, ", "))
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(w, "unknown command %q, type 'help'\n", cmd)
	}
	return false
}

func (c *Console) status(ctx context.Context, w io.Writer) {
	st := c.ctrl.Status()
	progress, enabled, label := c.display.snapshot()

	state := "idle"
	if st.Running {
		state = "running"
	}
	fmt.Fprintf(w, "session:  %s (control %q, enabled=%t)\n", state, label, enabled)
	fmt.Fprintf(w, "engine:   %3d%%  current %s  target %s  settles in %d ticks\n",
		progress, st.Current, st.Targets, st.SettleTicks)
	fmt.Fprintf(w, "input:    level %.3f  breaker %s\n", st.Level, st.Breaker)
	switch {
	case st.PlaybackErr != nil:
		fmt.Fprintf(w, "playback: %s (%v)\n", st.Playback, st.PlaybackErr)
	case st.Stream != audio.NoStream:
		fmt.Fprintf(w, "playback: %s (stream %d)\n", st.Playback, st.Stream)
	default:
		fmt.Fprintf(w, "playback: %s\n", st.Playback)
	}
	if st.AssetErr != nil {
		fmt.Fprintf(w, "asset:    %v\n", st.AssetErr)
	}

	if c.health == nil {
		return
	}
	rep := c.health.Evaluate(ctx)
	fmt.Fprintf(w, "ready:    %s\n", rep.Status)
	for _, name := range slices.Sorted(maps.Keys(rep.Checks)) {
		fmt.Fprintf(w, "  %-10s %s\n", name, rep.Checks[name])
	}
}

func report(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
}
