package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/micengine/internal/engine"
	"github.com/MrWong99/micengine/internal/observe"
	"github.com/MrWong99/micengine/pkg/audio"
	"github.com/MrWong99/micengine/pkg/audio/mock"
)

func newTestPlayback(t *testing.T) (*engine.Playback, *mock.SoundPool, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	pool := mock.NewSoundPool()
	return engine.NewPlayback(pool, engine.WithPlaybackMetrics(m)), pool, reader
}

func counter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var total int64
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

var idle = engine.Params{Volume: 0.2, Rate: 0.6}

func TestPlayback_UpdateBeforeAssetIsNoop(t *testing.T) {
	ctx := context.Background()
	pb, pool, _ := newTestPlayback(t)

	if got := pb.Update(ctx, idle); got != engine.PlaybackIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if len(pool.PlayCalls) != 0 {
		t.Errorf("Play called %d times before asset load", len(pool.PlayCalls))
	}
	if pb.AssetReady() {
		t.Error("AssetReady() = true before SetAsset")
	}
}

func TestPlayback_StartsThenUpdates(t *testing.T) {
	ctx := context.Background()
	pb, pool, reader := newTestPlayback(t)
	pb.SetAsset(7)

	if got := pb.Update(ctx, idle); got != engine.PlaybackPlaying {
		t.Fatalf("state = %v, want playing", got)
	}
	if len(pool.PlayCalls) != 1 {
		t.Fatalf("Play calls = %d, want 1", len(pool.PlayCalls))
	}
	want := mock.PlayCall{Asset: 7, Left: 0.2, Right: 0.2, Priority: 1, Loop: -1, Rate: 0.6}
	if pool.PlayCalls[0] != want {
		t.Errorf("Play = %+v, want %+v", pool.PlayCalls[0], want)
	}
	if pb.Stream() != 1 {
		t.Errorf("Stream() = %d, want 1", pb.Stream())
	}

	next := engine.Params{Volume: 0.5, Rate: 1.4}
	pb.Update(ctx, next)
	if len(pool.PlayCalls) != 1 {
		t.Errorf("Play called again while playing")
	}
	if len(pool.VolumeCalls) != 1 || pool.VolumeCalls[0] != (mock.VolumeCall{Stream: 1, Left: 0.5, Right: 0.5}) {
		t.Errorf("VolumeCalls = %+v", pool.VolumeCalls)
	}
	if len(pool.RateCalls) != 1 || pool.RateCalls[0] != (mock.RateCall{Stream: 1, Rate: 1.4}) {
		t.Errorf("RateCalls = %+v", pool.RateCalls)
	}
	if got := counter(t, reader, "micengine.playback.starts"); got != 1 {
		t.Errorf("playback starts = %d, want 1", got)
	}
}

func TestPlayback_ZeroHandleFaultsThenRecovers(t *testing.T) {
	ctx := context.Background()
	pb, pool, reader := newTestPlayback(t)
	pool.PlayResults = []audio.StreamID{audio.NoStream, 9}
	pb.SetAsset(1)

	if got := pb.Update(ctx, idle); got != engine.PlaybackFaulted {
		t.Fatalf("state = %v, want faulted", got)
	}
	if !errors.Is(pb.Err(), engine.ErrPlayback) {
		t.Errorf("Err() = %v, want ErrPlayback", pb.Err())
	}
	if len(pool.StopCalls) != 0 {
		t.Errorf("Stop called for a stream that never existed: %v", pool.StopCalls)
	}

	if got := pb.Update(ctx, idle); got != engine.PlaybackPlaying {
		t.Fatalf("state = %v, want playing after retry", got)
	}
	if pb.Stream() != 9 {
		t.Errorf("Stream() = %d, want 9", pb.Stream())
	}
	if pb.Err() != nil {
		t.Errorf("Err() = %v, want nil after recovery", pb.Err())
	}
	if got := counter(t, reader, "micengine.playback.faults"); got != 1 {
		t.Errorf("playback faults = %d, want 1", got)
	}
}

func TestPlayback_UpdateErrorRestartsOnNextTick(t *testing.T) {
	tests := []struct {
		name    string
		volErr  error
		rateErr error
	}{
		{"set volume fails", mock.ErrMock, nil},
		{"set rate fails", nil, mock.ErrMock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pb, pool, reader := newTestPlayback(t)
			pb.SetAsset(1)
			pb.Update(ctx, idle)

			pool.SetFailures(tt.volErr, tt.rateErr)
			if got := pb.Update(ctx, idle); got != engine.PlaybackFaulted {
				t.Fatalf("state = %v, want faulted", got)
			}
			if !errors.Is(pb.Err(), mock.ErrMock) || !errors.Is(pb.Err(), engine.ErrPlayback) {
				t.Errorf("Err() = %v, want wrapped ErrMock and ErrPlayback", pb.Err())
			}
			if pb.Stream() != audio.NoStream {
				t.Errorf("Stream() = %d, want cleared", pb.Stream())
			}
			if len(pool.StopCalls) != 1 || pool.StopCalls[0] != 1 {
				t.Errorf("StopCalls = %v, want old stream 1 stopped", pool.StopCalls)
			}

			pool.SetFailures(nil, nil)
			if got := pb.Update(ctx, idle); got != engine.PlaybackPlaying {
				t.Fatalf("state = %v, want playing", got)
			}
			if pb.Stream() != 2 {
				t.Errorf("Stream() = %d, want new stream 2", pb.Stream())
			}
			if got := counter(t, reader, "micengine.playback.starts"); got != 2 {
				t.Errorf("playback starts = %d, want 2", got)
			}
		})
	}
}

func TestPlayback_Stop(t *testing.T) {
	ctx := context.Background()
	pb, pool, _ := newTestPlayback(t)
	pb.SetAsset(1)

	// Stop while idle touches nothing.
	pb.Stop()
	if len(pool.StopCalls) != 0 {
		t.Fatalf("StopCalls = %v, want none while idle", pool.StopCalls)
	}

	pb.Update(ctx, idle)
	pool.StopError = mock.ErrMock
	pb.Stop()

	if pb.State() != engine.PlaybackIdle {
		t.Errorf("state = %v, want idle", pb.State())
	}
	if len(pool.StopCalls) != 1 || pool.StopCalls[0] != 1 {
		t.Errorf("StopCalls = %v, want [1]", pool.StopCalls)
	}
	if pb.Err() != nil {
		t.Errorf("stop errors must be swallowed, Err() = %v", pb.Err())
	}

	// A later update starts a fresh stream.
	if got := pb.Update(ctx, idle); got != engine.PlaybackPlaying {
		t.Errorf("state = %v, want playing", got)
	}
}

func TestPlayback_StopAfterFault(t *testing.T) {
	ctx := context.Background()
	pb, pool, _ := newTestPlayback(t)
	pool.PlayResults = []audio.StreamID{audio.NoStream}
	pb.SetAsset(1)
	pb.Update(ctx, idle)

	pb.Stop()
	if pb.State() != engine.PlaybackIdle {
		t.Errorf("state = %v, want idle", pb.State())
	}
	if pb.Err() != nil {
		t.Errorf("Err() = %v, want cleared", pb.Err())
	}
}

func TestPlaybackState_String(t *testing.T) {
	tests := []struct {
		s    engine.PlaybackState
		want string
	}{
		{engine.PlaybackIdle, "idle"},
		{engine.PlaybackStarting, "starting"},
		{engine.PlaybackPlaying, "playing"},
		{engine.PlaybackFaulted, "faulted"},
		{engine.PlaybackState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestTuning_Validate(t *testing.T) {
	if err := engine.DefaultTuning().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
	bad := engine.DefaultTuning()
	bad.VolumeStep = 0
	bad.Smoothing = 1
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"volume_step", "smoothing"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestPlayback_RepeatedFaultsWarnOnce(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx := context.Background()
	pb, pool, reader := newTestPlayback(t)
	pool.PlayResults = []audio.StreamID{audio.NoStream, audio.NoStream, audio.NoStream, audio.NoStream}
	pb.SetAsset(1)

	for range 4 {
		if got := pb.Update(ctx, idle); got != engine.PlaybackFaulted {
			t.Fatalf("state = %v, want faulted", got)
		}
	}
	if got := pb.Update(ctx, idle); got != engine.PlaybackPlaying {
		t.Fatalf("state = %v, want playing", got)
	}

	var warns, debugs int
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, "stream fault") {
			continue
		}
		switch {
		case strings.Contains(line, "level=WARN"):
			warns++
		case strings.Contains(line, "level=DEBUG"):
			debugs++
		}
	}
	if warns != 1 || debugs != 3 {
		t.Errorf("fault logs: %d warn, %d debug; want 1 warn, 3 debug\n%s", warns, debugs, buf.String())
	}
	if !strings.Contains(buf.String(), "stream recovered") || !strings.Contains(buf.String(), "failed_attempts=4") {
		t.Errorf("missing recovery log:\n%s", buf.String())
	}
	if got := counter(t, reader, "micengine.playback.faults"); got != 4 {
		t.Errorf("fault counter = %d, want 4", got)
	}

	// A fresh run after Stop warns again.
	pb.Stop()
	pool.PlayResults = []audio.StreamID{audio.NoStream}
	buf.Reset()
	pb.Update(ctx, idle)
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("first fault after Stop not logged at warn:\n%s", buf.String())
	}
}
