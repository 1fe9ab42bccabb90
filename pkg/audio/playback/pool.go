// Package playback implements [audio.SoundPool] on top of the beep mixer.
//
// Every stream is a chain of beep streamers:
//
//	asset buffer → Loop → Resampler (rate) → balance → effects.Volume → Ctrl → speaker
//
// Rate changes adjust the resampler ratio, volume changes adjust the
// effects.Volume exponent, and Stop detaches the chain from its Ctrl so the
// mixer drops it. All mutations happen under the speaker lock so the audio
// callback never sees a half-applied change.
package playback

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"

	"github.com/MrWong99/micengine/pkg/audio"
)

var _ audio.SoundPool = (*Pool)(nil)

// resampleQuality is the beep resampler quality (1 fastest … 6 best).
const resampleQuality = 4

// Config describes the output device.
type Config struct {
	// SampleRate of the output device in Hz.
	SampleRate int

	// Buffer is the device buffer length. Larger buffers survive scheduling
	// hiccups but delay every parameter change by up to this much.
	Buffer time.Duration
}

// Pool is an [audio.SoundPool] mixing all streams onto one output device.
type Pool struct {
	out  sink
	rate beep.SampleRate

	mu         sync.Mutex
	assets     map[audio.AssetID]*asset
	streams    map[audio.StreamID]*voice
	lastAsset  audio.AssetID
	lastStream audio.StreamID
	released   bool
}

// voice is the live streamer chain of one playing stream.
type voice struct {
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	balance   *balance
	volume    *effects.Volume

	// baseRatio converts the asset's sample rate to the output rate.
	baseRatio float64
}

// New opens the default output device.
func New(cfg Config) (*Pool, error) {
	return newPool(cfg, speakerSink{})
}

func newPool(cfg Config, out sink) (*Pool, error) {
	if cfg.SampleRate <= 0 || cfg.Buffer <= 0 {
		return nil, fmt.Errorf("playback: invalid output config %+v", cfg)
	}
	sr := beep.SampleRate(cfg.SampleRate)
	if err := out.Init(sr, sr.N(cfg.Buffer)); err != nil {
		return nil, fmt.Errorf("playback: init speaker: %w", err)
	}
	return &Pool{
		out:     out,
		rate:    sr,
		assets:  make(map[audio.AssetID]*asset),
		streams: make(map[audio.StreamID]*voice),
	}, nil
}

// LoadAsset implements [audio.SoundPool]. ref is either
// [audio.BuiltinIdleAsset] or a path to a WAV file. done runs on a new goroutine.
func (p *Pool) LoadAsset(ref string, done func(audio.AssetID, error)) {
	go func() {
		a, err := loadAsset(ref, p.rate)
		if err != nil {
			done(0, err)
			return
		}

		p.mu.Lock()
		p.lastAsset++
		id := p.lastAsset
		p.assets[id] = a
		p.mu.Unlock()

		slog.Info("playback: asset loaded", "ref", ref, "asset", id,
			"frames", a.buf.Len(), "sample_rate", int(a.buf.Format().SampleRate))
		done(id, nil)
	}()
}

// Play implements [audio.SoundPool]. All streams share one mixer, so
// priority is accepted but has no effect.
func (p *Pool) Play(id audio.AssetID, left, right float64, _ int, loop int, rate float64) audio.StreamID {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.assets[id]
	if !ok || p.released || rate <= 0 || math.IsNaN(rate) {
		slog.Warn("playback: cannot start stream", "asset", id, "rate", rate, "released", p.released)
		return audio.NoStream
	}

	count := loop + 1
	if loop < 0 {
		count = -1
	}
	v := &voice{baseRatio: a.ratio(p.rate)}
	v.resampler = beep.ResampleRatio(resampleQuality, rate*v.baseRatio, beep.Loop(count, a.buf.Streamer(0, a.buf.Len())))
	v.balance = &balance{Streamer: v.resampler}
	v.volume = &effects.Volume{Streamer: v.balance, Base: 2}
	v.setVolume(left, right)
	v.ctrl = &beep.Ctrl{Streamer: v.volume}

	p.lastStream++
	sid := p.lastStream
	p.streams[sid] = v
	p.out.Play(v.ctrl)
	return sid
}

// SetVolume implements [audio.SoundPool].
func (p *Pool) SetVolume(id audio.StreamID, left, right float64) error {
	v, err := p.voice(id)
	if err != nil {
		return err
	}
	p.out.Lock()
	v.setVolume(left, right)
	p.out.Unlock()
	return nil
}

// SetRate implements [audio.SoundPool].
func (p *Pool) SetRate(id audio.StreamID, rate float64) error {
	if rate <= 0 || math.IsNaN(rate) {
		return fmt.Errorf("playback: rate %v must be positive", rate)
	}
	v, err := p.voice(id)
	if err != nil {
		return err
	}
	p.out.Lock()
	v.resampler.SetRatio(rate * v.baseRatio)
	p.out.Unlock()
	return nil
}

// Stop implements [audio.SoundPool].
func (p *Pool) Stop(id audio.StreamID) error {
	p.mu.Lock()
	v, ok := p.streams[id]
	delete(p.streams, id)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", audio.ErrUnknownStream, id)
	}
	p.out.Lock()
	v.ctrl.Streamer = nil
	p.out.Unlock()
	return nil
}

// Release implements [audio.SoundPool]. It stops every stream and closes the
// output device. Later calls are no-ops.
func (p *Pool) Release() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	voices := p.streams
	p.streams = make(map[audio.StreamID]*voice)
	p.mu.Unlock()

	p.out.Lock()
	for _, v := range voices {
		v.ctrl.Streamer = nil
	}
	p.out.Unlock()
	p.out.Close()
	return nil
}

func (p *Pool) voice(id audio.StreamID) (*voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.streams[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", audio.ErrUnknownStream, id)
	}
	return v, nil
}

// setVolume maps linear channel gains onto the volume exponent (the louder
// channel) and the balance (the quieter channel relative to it). Must be
// called before the voice is playing or under the speaker lock.
func (v *voice) setVolume(left, right float64) {
	left, right = clampGain(left), clampGain(right)
	g := math.Max(left, right)
	if g == 0 {
		v.volume.Silent = true
		v.balance.Left, v.balance.Right = 1, 1
		return
	}
	v.volume.Silent = false
	v.volume.Volume = math.Log2(g)
	v.balance.Left, v.balance.Right = left/g, right/g
}

func clampGain(g float64) float64 {
	if math.IsNaN(g) {
		return 0
	}
	return math.Max(0, math.Min(g, 1))
}

// balance scales each channel by its own factor in [0,1].
type balance struct {
	Streamer    beep.Streamer
	Left, Right float64
}

func (b *balance) Stream(samples [][2]float64) (int, bool) {
	n, ok := b.Streamer.Stream(samples)
	if b.Left == 1 && b.Right == 1 {
		return n, ok
	}
	for i := range samples[:n] {
		samples[i][0] *= b.Left
		samples[i][1] *= b.Right
	}
	return n, ok
}

func (b *balance) Err() error { return b.Streamer.Err() }
