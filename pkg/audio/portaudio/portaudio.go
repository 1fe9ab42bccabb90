// Package portaudio captures microphone input through PortAudio.
//
// [Host] implements both [audio.Microphone] and [audio.Permissions]. Desktop
// platforms have no runtime permission prompt, so "granted" means a default
// input device is present and can report its parameters.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/micengine/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Microphone    = (*Host)(nil)
	_ audio.Permissions   = (*Host)(nil)
	_ audio.CaptureStream = (*captureStream)(nil)
)

// Host owns the PortAudio library. Create it with [Init] and release it with
// [Host.Close] once every stream has been closed.
type Host struct {
	mu     sync.Mutex
	closed bool
}

// Init initialises PortAudio.
func Init() (*Host, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Host{}, nil
}

// Close terminates PortAudio. It is safe to call more than once.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

// Open implements [audio.Microphone]. It opens and starts a blocking-read
// stream on the default input device.
func (h *Host) Open(ctx context.Context, format audio.CaptureFormat) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: host closed", audio.ErrDeviceUnavailable)
	}

	channels := format.Layout.Channels()
	if channels < 1 || format.BufferSize < channels {
		return nil, fmt.Errorf("portaudio: invalid capture format %s", format)
	}
	frames := format.BufferSize / channels
	buf := make([]int16, frames*channels)

	stream, err := pa.OpenDefaultStream(channels, 0, float64(format.SampleRate), frames, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: open default input: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: start input: %w", audio.ErrDeviceUnavailable, err)
	}

	slog.Debug("portaudio: capture stream started", "format", format.String(), "frames", frames)
	return &captureStream{stream: stream, buf: buf}, nil
}

// Granted implements [audio.Permissions].
func (h *Host) Granted(cap audio.Capability) bool {
	if cap != audio.RecordAudio {
		return false
	}
	dev, err := pa.DefaultInputDevice()
	return err == nil && dev != nil && dev.MaxInputChannels > 0
}

// Request implements [audio.Permissions]. The device check runs on its own
// goroutine; a cancelled ctx delivers false.
func (h *Host) Request(ctx context.Context, cap audio.Capability) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		result := make(chan bool, 1)
		go func() { result <- h.Granted(cap) }()
		select {
		case ok := <-result:
			out <- ok
		case <-ctx.Done():
			out <- false
		}
	}()
	return out
}

// captureStream is a started PortAudio input stream reading into buf.
type captureStream struct {
	stream *pa.Stream
	buf    []int16

	closeOnce sync.Once
	closeErr  error
}

// ReadBlock implements [audio.CaptureStream]. An input overflow loses some
// samples but still yields a usable block, so it is logged and not returned.
func (s *captureStream) ReadBlock() (audio.SampleBlock, error) {
	err := s.stream.Read()
	if errors.Is(err, pa.InputOverflowed) {
		slog.Debug("portaudio: input overflowed")
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrCaptureIO, err)
	}
	return audio.SampleBlock(s.buf), nil
}

// Close implements [audio.CaptureStream].
func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		err := s.stream.Stop()
		if cerr := s.stream.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			s.closeErr = fmt.Errorf("portaudio: close capture stream: %w", err)
		}
	})
	return s.closeErr
}
