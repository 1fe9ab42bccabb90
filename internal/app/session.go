package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/micengine/internal/observe"
	"github.com/MrWong99/micengine/internal/resilience"
	"github.com/MrWong99/micengine/pkg/audio"
)

// session is one Start..Stop cycle. It is owned by App.mu.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	stream audio.CaptureStream
	done   chan struct{}
	err    error // set before done is closed
}

// Start opens the microphone and runs the capture and render loops until
// [App.Stop] is called or capture fails for good. Calling Start while a
// session is running is a no-op.
//
// Start refuses to run, and tells the user why, when permission is missing,
// the engine sound is not loaded, or the microphone is still cooling down
// after repeated failures.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return nil
	}
	d := a.collab.Display

	// ── 1. Preconditions ──
	if !a.permitted.Load() {
		d.Notify(msgPermissionDenied)
		return ErrPermissionDenied
	}
	if !a.playback.AssetReady() {
		if err := a.assetError(); err != nil {
			d.Notify(msgAssetFailed)
			return err
		}
		d.Notify(msgAssetLoading)
		return fmt.Errorf("%w: still loading", ErrAssetLoad)
	}
	if a.breaker.State() == resilience.StateOpen {
		d.Notify(msgMicCoolingDown)
		return fmt.Errorf("%w: %w", ErrCaptureIO, resilience.ErrCircuitOpen)
	}

	// ── 2. Reset shared state ──
	a.state.Reset(a.Tuning())

	// ── 3. Open microphone ──
	sctx, span := observe.StartSpan(context.WithoutCancel(ctx), "micengine.session")
	format := a.cfg.Capture.Format()
	span.SetAttributes(
		attribute.Int("capture.sample_rate", format.SampleRate),
		attribute.Int("capture.buffer_size", format.BufferSize),
	)
	stream, err := a.collab.Microphone.Open(sctx, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open microphone")
		span.End()
		d.Notify(msgMicUnavailable)
		observe.Logger(sctx).Error("app: failed to open microphone", "format", format.String(), "err", err)
		return fmt.Errorf("%w: open microphone: %w", ErrCaptureIO, err)
	}

	// ── 4. Run loops ──
	sctx, cancel := context.WithCancel(sctx)
	sess := &session{
		ctx:    sctx,
		cancel: cancel,
		span:   span,
		stream: stream,
		done:   make(chan struct{}),
	}
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return a.captureLoop(gctx, stream) })
	g.Go(func() error { return a.renderLoop(gctx) })
	go a.supervise(sess, g)

	a.session = sess
	d.SetControlLabel(labelStop)
	a.metrics.SessionStarted(sctx)
	observe.Logger(sctx).Info("app: session started", "format", format.String())
	return nil
}

// Stop ends the running session, silences the engine and resets the display.
// Calling Stop with no session running is a no-op.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	sess := a.session
	if sess == nil {
		return
	}
	sess.cancel()
	<-sess.done
	a.teardownLocked(sess)
}

// Toggle starts a session when idle and stops it when running. It is the
// handler for the single start/stop control.
func (a *App) Toggle(ctx context.Context) error {
	if a.Running() {
		a.Stop()
		return nil
	}
	return a.Start(ctx)
}

// supervise waits for the session loops, closes the microphone and, when
// capture failed on its own, tears the session down.
func (a *App) supervise(sess *session, g *errgroup.Group) {
	err := g.Wait()
	if cerr := sess.stream.Close(); cerr != nil {
		observe.Logger(sess.ctx).Warn("app: close microphone", "err", cerr)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	sess.err = err
	close(sess.done)

	if err == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != sess {
		// Stop got there first.
		return
	}
	observe.Logger(sess.ctx).Error("app: session failed", "err", err)
	a.collab.Display.Notify(msgRecordingFailed)
	a.teardownLocked(sess)
}

// teardownLocked returns everything to the idle state. Must be called with
// a.mu held after sess.done is closed.
func (a *App) teardownLocked(sess *session) {
	a.playback.Stop()
	a.state.Reset(a.Tuning())

	d := a.collab.Display
	d.SetProgress(0)
	d.SetControlLabel(labelStart)

	if sess.err != nil {
		sess.span.RecordError(sess.err)
		sess.span.SetStatus(codes.Error, "capture failed")
	}
	a.metrics.SessionStopped(sess.ctx)
	observe.Logger(sess.ctx).Info("app: session stopped")
	sess.span.End()
	sess.cancel()
	a.session = nil
}

// ─── Loops ───────────────────────────────────────────────────────────────────

// captureLoop reads blocks until ctx is cancelled. Single read failures are
// logged and skipped. Once the breaker opens the loop gives up and the
// session ends.
func (a *App) captureLoop(ctx context.Context, stream audio.CaptureStream) error {
	log := observe.Logger(ctx)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var block audio.SampleBlock
		err := a.breaker.Execute(func() error {
			var rerr error
			block, rerr = stream.ReadBlock()
			return rerr
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			a.metrics.RecordCaptureError(ctx, "breaker_open")
			return fmt.Errorf("%w: %d consecutive read errors: %w",
				ErrCaptureIO, a.cfg.Capture.MaxConsecutiveErrors, err)
		case err != nil:
			a.metrics.RecordCaptureError(ctx, "io")
			log.Warn("app: capture read failed", "failures", a.breaker.Failures(), "err", err)
			continue
		case len(block) == 0:
			continue
		}

		level, _ := a.Tuning().Process(a.state, block)
		a.metrics.RecordCaptureBlock(ctx, level)
	}
}

// renderLoop steps the current parameters toward the targets once per tick
// and pushes them to the playback session and the display.
func (a *App) renderLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Engine.Tick)
	defer ticker.Stop()

	lastProgress := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		t := a.Tuning()
		cur := t.Tick(a.state)
		a.playback.Update(ctx, cur)
		if p := t.Progress(cur); p != lastProgress {
			a.collab.Display.SetProgress(p)
			lastProgress = p
		}
		a.metrics.RecordRenderTick(ctx)
	}
}
