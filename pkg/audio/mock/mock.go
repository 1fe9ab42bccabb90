// Package mock provides in-memory mock implementations of the [audio.Microphone],
// [audio.CaptureStream], [audio.SoundPool], [audio.Display], and
// [audio.Permissions] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	stream := &mock.CaptureStream{Blocks: []audio.SampleBlock{{1000, -1000}}}
//	mic := &mock.Microphone{OpenResult: stream}
//	pool := mock.NewSoundPool()
//	got, err := mic.Open(ctx, audio.CaptureFormat{SampleRate: 44100})
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/micengine/pkg/audio"
)

// ─── Microphone ───────────────────────────────────────────────────────────────

// Microphone is a mock implementation of [audio.Microphone].
type Microphone struct {
	mu sync.Mutex

	// OpenResult is returned by Open. When nil and OpenError is nil, Open
	// returns a fresh empty [CaptureStream].
	OpenResult audio.CaptureStream

	// OpenError is returned by Open.
	OpenError error

	// OpenCalls records the format of every Open invocation.
	OpenCalls []audio.CaptureFormat
}

// Open implements [audio.Microphone].
func (m *Microphone) Open(_ context.Context, format audio.CaptureFormat) (audio.CaptureStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls = append(m.OpenCalls, format)
	if m.OpenError != nil {
		return nil, m.OpenError
	}
	if m.OpenResult == nil {
		return &CaptureStream{}, nil
	}
	return m.OpenResult, nil
}

// OpenCount returns how many times Open was called.
func (m *Microphone) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.OpenCalls)
}

// ─── CaptureStream ────────────────────────────────────────────────────────────

// CaptureStream is a mock implementation of [audio.CaptureStream].
//
// ReadBlock returns Blocks in order. After the scripted blocks are exhausted it
// keeps returning Repeat (or an empty block when Repeat is nil). If Errors has
// an entry at the current read index, that error is returned instead.
type CaptureStream struct {
	mu sync.Mutex

	// Blocks are returned by successive ReadBlock calls.
	Blocks []audio.SampleBlock

	// Repeat is returned once Blocks is exhausted.
	Repeat audio.SampleBlock

	// Errors maps a zero-based read index to the error returned for that read.
	Errors map[int]error

	// ReadErr, when non-nil, is returned by every read after Blocks is exhausted.
	ReadErr error

	// Gate, when non-nil, is received from before each read returns. Tests use
	// it to pace the capture loop.
	Gate chan struct{}

	// CloseError is returned by Close.
	CloseError error

	reads      int
	closeCalls int
}

// ReadBlock implements [audio.CaptureStream].
func (s *CaptureStream) ReadBlock() (audio.SampleBlock, error) {
	if s.Gate != nil {
		<-s.Gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.reads
	s.reads++
	if err, ok := s.Errors[i]; ok {
		return nil, err
	}
	if i < len(s.Blocks) {
		return s.Blocks[i], nil
	}
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	return s.Repeat, nil
}

// Close implements [audio.CaptureStream].
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.CloseError
}

// Reads returns how many times ReadBlock was called.
func (s *CaptureStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// CloseCount returns how many times Close was called.
func (s *CaptureStream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// ─── SoundPool ────────────────────────────────────────────────────────────────

// PlayCall records the arguments of a single [SoundPool.Play] invocation.
type PlayCall struct {
	Asset    audio.AssetID
	Left     float64
	Right    float64
	Priority int
	Loop     int
	Rate     float64
}

// VolumeCall records the arguments of a single [SoundPool.SetVolume] invocation.
type VolumeCall struct {
	Stream audio.StreamID
	Left   float64
	Right  float64
}

// RateCall records the arguments of a single [SoundPool.SetRate] invocation.
type RateCall struct {
	Stream audio.StreamID
	Rate   float64
}

// SoundPool is a mock implementation of [audio.SoundPool].
//
// Play hands out sequential stream IDs starting at 1 unless PlayResults is
// set. LoadAsset calls done synchronously unless DeferLoad is true, in which
// case the test completes loading with [SoundPool.CompleteLoad].
type SoundPool struct {
	mu sync.Mutex

	// LoadResult is the asset ID passed to the load callback.
	LoadResult audio.AssetID

	// LoadError is the error passed to the load callback.
	LoadError error

	// DeferLoad holds the load callback until CompleteLoad is called.
	DeferLoad bool

	// PlayResults, when non-empty, are returned by successive Play calls.
	// Once exhausted, Play falls back to sequential IDs.
	PlayResults []audio.StreamID

	// SetVolumeError and SetRateError are returned by SetVolume / SetRate.
	SetVolumeError error
	SetRateError   error

	// StopError is returned by Stop.
	StopError error

	// ReleaseError is returned by Release.
	ReleaseError error

	LoadCalls    []string
	PlayCalls    []PlayCall
	VolumeCalls  []VolumeCall
	RateCalls    []RateCall
	StopCalls    []audio.StreamID
	ReleaseCalls int

	pendingLoad func(audio.AssetID, error)
	nextID      audio.StreamID
}

// NewSoundPool returns a SoundPool whose assets load successfully as ID 1.
func NewSoundPool() *SoundPool {
	return &SoundPool{LoadResult: 1}
}

// LoadAsset implements [audio.SoundPool].
func (p *SoundPool) LoadAsset(ref string, done func(audio.AssetID, error)) {
	p.mu.Lock()
	p.LoadCalls = append(p.LoadCalls, ref)
	if p.DeferLoad {
		p.pendingLoad = done
		p.mu.Unlock()
		return
	}
	id, err := p.LoadResult, p.LoadError
	p.mu.Unlock()
	done(id, err)
}

// CompleteLoad invokes the deferred load callback, if any.
func (p *SoundPool) CompleteLoad() {
	p.mu.Lock()
	done := p.pendingLoad
	p.pendingLoad = nil
	id, err := p.LoadResult, p.LoadError
	p.mu.Unlock()
	if done != nil {
		done(id, err)
	}
}

// Play implements [audio.SoundPool].
func (p *SoundPool) Play(asset audio.AssetID, left, right float64, priority, loop int, rate float64) audio.StreamID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{
		Asset: asset, Left: left, Right: right, Priority: priority, Loop: loop, Rate: rate,
	})
	if len(p.PlayResults) > 0 {
		id := p.PlayResults[0]
		p.PlayResults = p.PlayResults[1:]
		return id
	}
	p.nextID++
	return p.nextID
}

// SetVolume implements [audio.SoundPool].
func (p *SoundPool) SetVolume(id audio.StreamID, left, right float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.VolumeCalls = append(p.VolumeCalls, VolumeCall{Stream: id, Left: left, Right: right})
	return p.SetVolumeError
}

// SetRate implements [audio.SoundPool].
func (p *SoundPool) SetRate(id audio.StreamID, rate float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RateCalls = append(p.RateCalls, RateCall{Stream: id, Rate: rate})
	return p.SetRateError
}

// Stop implements [audio.SoundPool].
func (p *SoundPool) Stop(id audio.StreamID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls = append(p.StopCalls, id)
	return p.StopError
}

// Release implements [audio.SoundPool].
func (p *SoundPool) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReleaseCalls++
	return p.ReleaseError
}

// SetFailures replaces the SetVolume/SetRate errors under the lock.
func (p *SoundPool) SetFailures(volumeErr, rateErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SetVolumeError = volumeErr
	p.SetRateError = rateErr
}

// Snapshot returns copies of the recorded Play, SetVolume and Stop calls.
func (p *SoundPool) Snapshot() (plays []PlayCall, volumes []VolumeCall, stops []audio.StreamID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plays = append([]PlayCall(nil), p.PlayCalls...)
	volumes = append([]VolumeCall(nil), p.VolumeCalls...)
	stops = append([]audio.StreamID(nil), p.StopCalls...)
	return plays, volumes, stops
}

// ─── Display ──────────────────────────────────────────────────────────────────

// Display is a mock implementation of [audio.Display].
type Display struct {
	mu sync.Mutex

	Progress      []int
	Enabled       []bool
	Labels        []string
	Notifications []string
}

// SetProgress implements [audio.Display].
func (d *Display) SetProgress(value int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Progress = append(d.Progress, value)
}

// SetControlEnabled implements [audio.Display].
func (d *Display) SetControlEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Enabled = append(d.Enabled, enabled)
}

// SetControlLabel implements [audio.Display].
func (d *Display) SetControlLabel(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Labels = append(d.Labels, label)
}

// Notify implements [audio.Display].
func (d *Display) Notify(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Notifications = append(d.Notifications, message)
}

// LastLabel returns the most recent label, or "" if none was set.
func (d *Display) LastLabel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Labels) == 0 {
		return ""
	}
	return d.Labels[len(d.Labels)-1]
}

// LastEnabled returns the most recent enabled state and whether one was set.
func (d *Display) LastEnabled() (enabled, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Enabled) == 0 {
		return false, false
	}
	return d.Enabled[len(d.Enabled)-1], true
}

// Messages returns a copy of the recorded notifications.
func (d *Display) Messages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Notifications...)
}

// ProgressValues returns a copy of the recorded progress values.
func (d *Display) ProgressValues() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.Progress...)
}

// ─── Permissions ──────────────────────────────────────────────────────────────

// Permissions is a mock implementation of [audio.Permissions].
type Permissions struct {
	mu sync.Mutex

	// GrantedResult is returned by Granted.
	GrantedResult bool

	// RequestResult is delivered by Request.
	RequestResult bool

	RequestCalls []audio.Capability
}

// Granted implements [audio.Permissions].
func (p *Permissions) Granted(audio.Capability) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.GrantedResult
}

// Request implements [audio.Permissions]. The result is delivered on a
// buffered channel so the caller never blocks.
func (p *Permissions) Request(_ context.Context, cap audio.Capability) <-chan bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RequestCalls = append(p.RequestCalls, cap)
	ch := make(chan bool, 1)
	ch <- p.RequestResult
	close(ch)
	return ch
}

// ErrMock is a generic error tests can hand to the mocks.
var ErrMock = errors.New("mock: injected failure")
