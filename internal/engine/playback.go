package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/micengine/internal/observe"
	"github.com/MrWong99/micengine/pkg/audio"
)

// ErrPlayback wraps errors raised by the sound collaborator while starting
// or updating a stream.
var ErrPlayback = errors.New("engine: playback failed")

// PlaybackState is the lifecycle state of a [Playback] session.
type PlaybackState int

const (
	// PlaybackIdle means no stream exists and none has failed.
	PlaybackIdle PlaybackState = iota

	// PlaybackStarting is held while the collaborator is asked to start the
	// looping stream.
	PlaybackStarting

	// PlaybackPlaying means a valid stream handle is held and updated each tick.
	PlaybackPlaying

	// PlaybackFaulted means the last start or update failed. The handle has
	// been dropped; the next update tries to start a fresh stream.
	PlaybackFaulted
)

// String returns the human-readable name of the state.
func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackStarting:
		return "starting"
	case PlaybackPlaying:
		return "playing"
	case PlaybackFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

const (
	// playPriority is the stream priority passed to the sound collaborator.
	playPriority = 1

	// loopForever asks the collaborator to loop the sample indefinitely.
	loopForever = -1
)

// PlaybackOption configures a [Playback] during construction.
type PlaybackOption func(*Playback)

// WithPlaybackMetrics records stream starts and faults on m.
func WithPlaybackMetrics(m *observe.Metrics) PlaybackOption {
	return func(p *Playback) { p.metrics = m }
}

// Playback owns the single engine-sound stream on a [audio.SoundPool].
//
// Faults never propagate: a failed start or update drops the handle, moves
// to [PlaybackFaulted], and the next [Playback.Update] starts over. This keeps
// transient output errors from killing the render loop.
//
// All methods are safe for concurrent use.
type Playback struct {
	pool    audio.SoundPool
	metrics *observe.Metrics

	mu         sync.Mutex
	state      PlaybackState
	stream     audio.StreamID
	asset      audio.AssetID
	assetReady bool
	lastErr    error
	faults     int // consecutive faults since the last successful start
}

// NewPlayback creates an idle Playback on pool. Updates are ignored until
// [Playback.SetAsset] reports a loaded sample.
func NewPlayback(pool audio.SoundPool, opts ...PlaybackOption) *Playback {
	p := &Playback{pool: pool}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetAsset records the loaded engine sample. Until it is called, Update is a no-op.
func (p *Playback) SetAsset(id audio.AssetID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asset = id
	p.assetReady = true
}

// AssetReady reports whether SetAsset has been called.
func (p *Playback) AssetReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assetReady
}

// State returns the current lifecycle state.
func (p *Playback) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stream returns the active stream handle, or [audio.NoStream].
func (p *Playback) Stream() audio.StreamID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream
}

// Err returns the error behind the most recent fault, or nil.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Update applies v to the stream, starting one first if none is playing.
// It returns the state after the update.
func (p *Playback) Update(ctx context.Context, v Params) PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.assetReady {
		return p.state
	}

	switch p.state {
	case PlaybackIdle, PlaybackFaulted:
		p.startLocked(ctx, v)
	case PlaybackPlaying:
		p.applyLocked(ctx, v)
	}
	return p.state
}

// Stop stops the active stream, if any, and returns to [PlaybackIdle].
// Collaborator errors are logged, not returned.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != audio.NoStream {
		if err := p.pool.Stop(p.stream); err != nil {
			slog.Warn("playback: stop failed", "stream", p.stream, "err", err)
		}
	}
	p.stream = audio.NoStream
	p.state = PlaybackIdle
	p.lastErr = nil
	p.faults = 0
}

// startLocked asks the pool for a new looping stream. Must be called with p.mu held.
func (p *Playback) startLocked(ctx context.Context, v Params) {
	p.state = PlaybackStarting
	id := p.pool.Play(p.asset, v.Volume, v.Volume, playPriority, loopForever, v.Rate)
	if id == audio.NoStream {
		p.faultLocked(ctx, fmt.Errorf("%w: play returned no stream", ErrPlayback))
		return
	}

	p.stream = id
	p.state = PlaybackPlaying
	p.lastErr = nil
	p.metrics.RecordPlaybackStart(ctx)
	if p.faults > 0 {
		slog.Info("playback: stream recovered", "stream", id, "failed_attempts", p.faults)
	} else {
		slog.Debug("playback: stream started", "stream", id, "params", v)
	}
	p.faults = 0
}

// applyLocked pushes v to the active stream. Must be called with p.mu held.
func (p *Playback) applyLocked(ctx context.Context, v Params) {
	if err := p.pool.SetVolume(p.stream, v.Volume, v.Volume); err != nil {
		p.faultLocked(ctx, fmt.Errorf("%w: set volume on stream %d: %w", ErrPlayback, p.stream, err))
		return
	}
	if err := p.pool.SetRate(p.stream, v.Rate); err != nil {
		p.faultLocked(ctx, fmt.Errorf("%w: set rate on stream %d: %w", ErrPlayback, p.stream, err))
	}
}

// faultLocked drops the handle so the next update starts over. A stream that
// may still be sounding is stopped on a best-effort basis so restarts never
// stack. Only the first fault of a run is logged at Warn; retries that keep
// failing log at Debug. Must be called with p.mu held.
func (p *Playback) faultLocked(ctx context.Context, err error) {
	p.faults++
	level := slog.LevelDebug
	if p.faults == 1 {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "playback: stream fault, will restart on next tick",
		"stream", p.stream,
		"attempt", p.faults,
		"err", err,
	)
	if p.stream != audio.NoStream {
		_ = p.pool.Stop(p.stream)
	}
	p.stream = audio.NoStream
	p.state = PlaybackFaulted
	p.lastErr = err
	p.metrics.RecordPlaybackFault(ctx)
}
