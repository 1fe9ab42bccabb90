// Command micengine turns microphone loudness into a revving engine sound.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/chzyer/readline"

	"github.com/MrWong99/micengine/internal/app"
	"github.com/MrWong99/micengine/internal/config"
	"github.com/MrWong99/micengine/internal/console"
	"github.com/MrWong99/micengine/internal/health"
	"github.com/MrWong99/micengine/internal/observe"
	"github.com/MrWong99/micengine/internal/ui"
	"github.com/MrWong99/micengine/pkg/audio"
	"github.com/MrWong99/micengine/pkg/audio/playback"
	"github.com/MrWong99/micengine/pkg/audio/portaudio"
)

var version = "dev"

// CLI is the command line.
type CLI struct {
	Version  bool   `short:"v" help:"Show version information"`
	Config   string `short:"c" type:"path" default:"micengine.yaml" help:"Path to the YAML configuration file"`
	Asset    string `short:"a" help:"Engine sample: a WAV file path or builtin:idle (overrides playback.asset)"`
	LogLevel string `name:"log-level" help:"Log level: debug, info, warn, error (overrides server.log_level)"`
	Headless bool   `help:"Use a line-based console instead of the terminal UI"`
}

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("micengine"),
		kong.Description("Rev a virtual engine with your voice"),
		kong.UsageOnError(),
	)
	if cli.Version {
		fmt.Printf("micengine %s\n", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "micengine: %v\n", err)
		return 1
	}
	if cli.Asset != "" {
		cfg.Playback.Asset = cli.Asset
	}
	if cli.LogLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(cli.LogLevel)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "micengine: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Level())
	logOut, closeLog, err := logOutput(cfg, cli.Headless)
	if err != nil {
		fmt.Fprintf(os.Stderr, "micengine: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: &level})))

	slog.Info("micengine starting",
		"version", version,
		"config", cli.Config,
		"asset", cfg.Playback.Asset,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Audio devices ─────────────────────────────────────────────────────────
	host, err := portaudio.Init()
	if err != nil {
		slog.Error("failed to initialise audio input", "err", err)
		return 1
	}
	pool, err := playback.New(playback.Config{
		SampleRate: cfg.Playback.SampleRate,
		Buffer:     cfg.Playback.Buffer,
	})
	if err != nil {
		_ = host.Close()
		slog.Error("failed to initialise audio output", "err", err)
		return 1
	}

	// ── Front end ─────────────────────────────────────────────────────────────
	fe, err := newFrontEnd(cli.Headless)
	if err != nil {
		_ = pool.Release()
		_ = host.Close()
		slog.Error("failed to initialise front end", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, app.Collaborators{
		Microphone:  host,
		Sound:       pool,
		Display:     fe.display(),
		Permissions: host,
	}, app.WithCloser(host.Close), app.WithLogLevel(&level))
	if err != nil {
		_ = pool.Release()
		_ = host.Close()
		fe.close()
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	hc := health.New(application.Checkers()...)

	// ── Metrics and health endpoints (optional) ───────────────────────────────
	var srv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", observe.MetricsHandler())
		hc.Register(mux)
		srv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		slog.Info("metrics server listening", "addr", cfg.Server.MetricsAddr)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if _, statErr := os.Stat(cli.Config); statErr == nil {
		w, err := config.NewWatcher(cli.Config, func(old, new *config.Config) {
			_, _ = application.Reload(old, new)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	code := 0
	if err := fe.run(ctx, application, hc); err != nil {
		slog.Error("front end error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down")
	fe.close()
	if err := application.Shutdown(); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(sctx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
		cancel()
	}
	slog.Info("goodbye")
	return code
}

// logOutput picks the log destination. The terminal UI owns the screen, so
// logs go to the configured file there.
func logOutput(cfg *config.Config, headless bool) (io.Writer, func(), error) {
	if headless || cfg.Server.LogFile == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %q: %w", cfg.Server.LogFile, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// ── Front ends ────────────────────────────────────────────────────────────────

// frontEnd is the user-facing surface: the terminal UI or the console.
type frontEnd interface {
	display() audio.Display
	run(ctx context.Context, a *app.App, hc *health.Handler) error
	close()
}

func newFrontEnd(headless bool) (frontEnd, error) {
	if headless {
		rl, err := console.NewReadline()
		if err != nil {
			return nil, err
		}
		return &consoleFrontEnd{rl: rl, d: console.NewDisplay(rl.Stdout())}, nil
	}
	return &tuiFrontEnd{d: ui.NewDisplay()}, nil
}

type tuiFrontEnd struct {
	d *ui.Display
}

func (f *tuiFrontEnd) display() audio.Display { return f.d }
func (f *tuiFrontEnd) close()                 { f.d.Close() }

func (f *tuiFrontEnd) run(ctx context.Context, a *app.App, _ *health.Handler) error {
	p := tea.NewProgram(ui.NewModel(ctx, a, f.d), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

type consoleFrontEnd struct {
	rl *readline.Instance
	d  *console.Display
}

func (f *consoleFrontEnd) display() audio.Display { return f.d }
func (f *consoleFrontEnd) close()                 { _ = f.rl.Close() }

func (f *consoleFrontEnd) run(ctx context.Context, a *app.App, hc *health.Handler) error {
	return console.New(a, hc, f.d).Run(ctx, f.rl)
}
