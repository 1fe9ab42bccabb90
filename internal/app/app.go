// Package app wires the engine-sound control loop to its collaborators.
//
// [App] owns the full lifecycle: [New] checks the microphone permission and
// starts loading the engine sample, [App.Start] and [App.Stop] run and end a
// recording session, and [App.Shutdown] releases every device.
//
// A session runs two goroutines in one errgroup:
//
//   - capture: blocking microphone reads → level estimator → response mapper
//   - render: a fixed ticker → ramp controller → playback session → display
//
// For testing, construct an App with the mocks from pkg/audio/mock.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/micengine/internal/config"
	"github.com/MrWong99/micengine/internal/engine"
	"github.com/MrWong99/micengine/internal/health"
	"github.com/MrWong99/micengine/internal/observe"
	"github.com/MrWong99/micengine/internal/resilience"
	"github.com/MrWong99/micengine/pkg/audio"
)

// Collaborators are the platform services the App drives. All fields are
// required.
type Collaborators struct {
	Microphone  audio.Microphone
	Sound       audio.SoundPool
	Display     audio.Display
	Permissions audio.Permissions
}

// App owns the control loop state and the collaborator lifetimes.
type App struct {
	cfg     *config.Config
	collab  Collaborators
	metrics *observe.Metrics
	level   *slog.LevelVar

	tuning   atomic.Pointer[engine.Tuning]
	state    *engine.State
	playback *engine.Playback
	breaker  *resilience.CircuitBreaker

	permitted atomic.Bool

	assetMu  sync.Mutex
	assetErr error

	// mu serialises Start, Stop, tuning swaps and session teardown.
	mu      sync.Mutex
	session *session

	quit     chan struct{}
	bg       sync.WaitGroup
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets [App.Reload] change the log level through lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithCloser registers fn to run during [App.Shutdown], after the sound pool
// is released. Closers run in registration order.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New validates a copy of cfg (structural zero fields defaulted), resets the
// display and kicks off the two asynchronous start-up steps: the microphone
// permission request and the engine sample load. It returns before either
// completes; the start control is enabled once permission is granted.
func New(ctx context.Context, cfg *config.Config, collab Collaborators, opts ...Option) (*App, error) {
	if collab.Microphone == nil || collab.Sound == nil || collab.Display == nil || collab.Permissions == nil {
		return nil, fmt.Errorf("%w: missing collaborator", ErrConfiguration)
	}
	c := *cfg
	c.ApplyDefaults()
	cfg = &c
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	a := &App{cfg: cfg, collab: collab, quit: make(chan struct{})}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	t := cfg.Engine.Tuning()
	a.tuning.Store(&t)
	a.state = engine.NewState(t)
	a.playback = engine.NewPlayback(collab.Sound, engine.WithPlaybackMetrics(a.metrics))
	a.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "microphone",
		MaxFailures:  cfg.Capture.MaxConsecutiveErrors,
		ResetTimeout: cfg.Capture.ErrorCooldown,
		OnStateChange: func(from, to resilience.State) {
			level := slog.LevelInfo
			if to == resilience.StateOpen {
				level = slog.LevelWarn
			}
			slog.Log(context.Background(), level, "app: microphone breaker state change",
				"from", from.String(), "to", to.String())
			a.metrics.RecordBreakerTransition(context.Background(), to.String())
		},
	})

	d := collab.Display
	d.SetProgress(0)
	d.SetControlLabel(labelStart)
	d.SetControlEnabled(false)

	a.initPermission(ctx)
	a.loadAsset()
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initPermission enables the start control once recording is allowed.
func (a *App) initPermission(ctx context.Context) {
	p := a.collab.Permissions
	if p.Granted(audio.RecordAudio) {
		a.grant()
		return
	}

	result := p.Request(ctx, audio.RecordAudio)
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		var ok bool
		select {
		case ok = <-result:
		case <-a.quit:
			return
		}
		if ok {
			a.grant()
			return
		}
		slog.Warn("app: microphone permission denied")
		a.collab.Display.Notify(msgPermissionDenied)
	}()
}

func (a *App) grant() {
	a.permitted.Store(true)
	a.collab.Display.SetControlEnabled(true)
	slog.Info("app: microphone permission granted")
}

// loadAsset starts loading the engine sample. Playback updates are no-ops
// until it arrives.
func (a *App) loadAsset() {
	ref := a.cfg.Playback.Asset
	a.collab.Sound.LoadAsset(ref, func(id audio.AssetID, err error) {
		if err != nil {
			a.assetMu.Lock()
			a.assetErr = fmt.Errorf("%w: %q: %w", ErrAssetLoad, ref, err)
			a.assetMu.Unlock()
			slog.Error("app: engine sound failed to load", "asset", ref, "err", err)
			a.collab.Display.Notify(msgAssetFailed)
			return
		}
		a.playback.SetAsset(id)
		slog.Info("app: engine sound loaded", "asset", ref, "id", id)
	})
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Tuning returns the tuning currently in effect.
func (a *App) Tuning() engine.Tuning {
	return *a.tuning.Load()
}

// ApplyTuning swaps in t. Invalid tuning is rejected with [ErrConfiguration].
//
// When idle, the shared state is reset to the new minimum right away. A
// running session keeps its state: targets are remapped into the new ranges
// on the next captured block and the current values slew back to them at the
// new step sizes, so a narrowed range is left gradually rather than with a
// jump.
func (a *App) ApplyTuning(t engine.Tuning) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tuning.Store(&t)
	if a.session == nil {
		a.state.Reset(t)
	}
	slog.Info("app: tuning updated", "min", t.Minimum().String(),
		"max", engine.Params{Volume: t.MaxVolume, Rate: t.MaxRate}.String(),
		"running", a.session != nil)
	return nil
}

// Reload applies a config file change: tuning and log level take effect
// immediately, everything else is reported as restart-required and left
// alone. The returned diff describes what changed.
func (a *App) Reload(old, new *config.Config) (config.ConfigDiff, error) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	var err error
	if d.TuningChanged {
		if err = a.ApplyTuning(new.Engine.Tuning()); err != nil {
			slog.Warn("app: tuning change rejected", "err", err)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: config changes take effect after restart", "sections", d.RestartRequired)
	}
	return d, err
}

// ResetCapture closes the microphone circuit breaker, ending a cooldown
// early so the next Start opens the microphone again.
func (a *App) ResetCapture() {
	a.breaker.Reset()
}

// Status is a point-in-time view of the control loop.
type Status struct {
	Running   bool
	Permitted bool
	AssetErr  error
	Level     float64
	Current   engine.Params
	Targets   engine.Params
	Playback  engine.PlaybackState
	Breaker   resilience.State

	// Stream is the playing stream handle, or [audio.NoStream].
	Stream audio.StreamID

	// PlaybackErr is the error behind the last playback fault, if the
	// stream is currently faulted.
	PlaybackErr error

	// SettleTicks is how many render ticks the current values need to reach
	// the targets.
	SettleTicks int
}

// Status returns a snapshot of the control loop.
func (a *App) Status() Status {
	a.mu.Lock()
	running := a.session != nil
	a.mu.Unlock()
	cur, tgt := a.state.Current(), a.state.Targets()
	return Status{
		Running:     running,
		Permitted:   a.permitted.Load(),
		AssetErr:    a.assetError(),
		Level:       a.state.Level(),
		Current:     cur,
		Targets:     tgt,
		Playback:    a.playback.State(),
		Breaker:     a.breaker.State(),
		Stream:      a.playback.Stream(),
		PlaybackErr: a.playback.Err(),
		SettleTicks: a.Tuning().TicksToConverge(cur, tgt),
	}
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

// Checkers returns the readiness checks for the health endpoint.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{
		health.Flag("asset", a.playback.AssetReady, "engine sound not loaded"),
		health.Flag("microphone", a.permitted.Load, "microphone permission not granted"),
	}
}

func (a *App) assetError() error {
	a.assetMu.Lock()
	defer a.assetMu.Unlock()
	return a.assetErr
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops any running session, releases the sound pool and runs the
// registered closers. It is safe to call more than once.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		a.Stop()
		close(a.quit)

		var errs []error
		if rerr := a.collab.Sound.Release(); rerr != nil {
			errs = append(errs, fmt.Errorf("release sound pool: %w", rerr))
		}
		a.bg.Wait()
		for i, fn := range a.closers {
			if cerr := fn(); cerr != nil {
				slog.Warn("app: closer error", "index", i, "err", cerr)
				errs = append(errs, cerr)
			}
		}
		if len(errs) > 0 {
			err = fmt.Errorf("app: shutdown: %w", errors.Join(errs...))
		}
		slog.Info("app: shut down")
	})
	return err
}
