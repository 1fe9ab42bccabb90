// Package audio defines the collaborator interfaces the engine-sound control
// loop depends on: microphone capture, sound playback, display, and
// permission handling.
//
// The core packages only ever see these interfaces. Platform adapters live in
// sub-packages (audio/portaudio for capture, audio/beep for playback) and
// test doubles live in audio/mock.
//
// This package lives under pkg/ because the interfaces are the extension
// point for other platforms (mobile capture, a different mixer, …).
package audio

import "context"

// Microphone opens capture streams on the default input device.
//
// Implementations must be safe for concurrent use.
type Microphone interface {
	// Open starts a capture stream with the requested format. It fails with an
	// error wrapping [ErrDeviceUnavailable] when no input device can be opened.
	Open(ctx context.Context, format CaptureFormat) (CaptureStream, error)
}

// CaptureStream is an open microphone stream.
//
// A CaptureStream is owned by a single reader goroutine; it is not safe for
// concurrent ReadBlock calls.
type CaptureStream interface {
	// ReadBlock blocks until the next buffer of samples is available and
	// returns it. The returned block is only valid until the next call.
	// Transient device errors are returned wrapped in [ErrCaptureIO].
	ReadBlock() (SampleBlock, error)

	// Close stops the stream and releases the device. Safe to call more than once.
	Close() error
}

// SoundPool plays short looping samples and lets callers adjust the volume
// and playback rate of each active stream.
//
// Implementations must be safe for concurrent use.
type SoundPool interface {
	// LoadAsset starts loading the sample identified by ref. Loading is
	// asynchronous: done is invoked exactly once, on an internal goroutine,
	// with the asset ID or an error wrapping [ErrAssetLoad].
	LoadAsset(ref string, done func(AssetID, error))

	// Play starts the asset with the given left/right volumes in [0,1],
	// priority, loop count (-1 loops forever) and playback rate. It returns
	// the new stream's ID, or [NoStream] if the stream could not be started.
	Play(asset AssetID, left, right float64, priority, loop int, rate float64) StreamID

	// SetVolume changes the left/right volume of an active stream.
	SetVolume(id StreamID, left, right float64) error

	// SetRate changes the playback rate of an active stream.
	SetRate(id StreamID, rate float64) error

	// Stop stops an active stream. Stopping an unknown stream is an error.
	Stop(id StreamID) error

	// Release stops all streams and frees the output device.
	Release() error
}

// Display receives presentation updates from the control loop. Calls arrive
// from the loop goroutines and must not block.
type Display interface {
	// SetProgress shows the current engine intensity in [0,100].
	SetProgress(value int)

	// SetControlEnabled enables or disables the start/stop control.
	SetControlEnabled(enabled bool)

	// SetControlLabel sets the start/stop control's label text.
	SetControlLabel(label string)

	// Notify shows a transient, non-blocking message.
	Notify(message string)
}

// Permissions checks and requests access to platform capabilities.
type Permissions interface {
	// Granted reports whether cap is currently available.
	Granted(cap Capability) bool

	// Request asks for cap. The returned channel receives exactly one value
	// and is then closed.
	Request(ctx context.Context, cap Capability) <-chan bool
}
