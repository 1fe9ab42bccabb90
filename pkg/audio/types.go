package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned by [Microphone.Open] when no input
	// device can be opened.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

	// ErrCaptureIO wraps errors raised while reading from an open stream.
	ErrCaptureIO = errors.New("audio: capture read failed")

	// ErrAssetLoad wraps errors raised while loading a sound asset.
	ErrAssetLoad = errors.New("audio: asset load failed")

	// ErrUnknownStream is returned when a stream ID does not refer to an
	// active stream.
	ErrUnknownStream = errors.New("audio: unknown stream")
)

// SampleBlock is one read of signed 16-bit mono PCM samples.
type SampleBlock []int16

// ChannelLayout selects the channel configuration of a capture stream.
type ChannelLayout int

const (
	// Mono captures a single channel.
	Mono ChannelLayout = iota + 1

	// Stereo captures two interleaved channels.
	Stereo
)

// Channels returns the number of channels in the layout.
func (c ChannelLayout) Channels() int {
	return int(c)
}

// String returns the human-readable name of the layout.
func (c ChannelLayout) String() string {
	switch c {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("%dch", int(c))
	}
}

// SampleFormat selects the encoding of captured samples.
type SampleFormat int

const (
	// PCM16 is signed 16-bit little-endian PCM.
	PCM16 SampleFormat = iota
)

// String returns the human-readable name of the format.
func (f SampleFormat) String() string {
	if f == PCM16 {
		return "pcm16"
	}
	return "unknown"
}

// CaptureFormat describes the stream requested from a [Microphone].
type CaptureFormat struct {
	// SampleRate in Hz (e.g., 44100).
	SampleRate int

	// Layout is the channel configuration. The control loop only uses [Mono].
	Layout ChannelLayout

	// Format is the sample encoding.
	Format SampleFormat

	// BufferSize is a hint for the number of frames returned per ReadBlock.
	BufferSize int
}

// String returns a compact description, e.g. "44100Hz mono pcm16 x882".
func (f CaptureFormat) String() string {
	return fmt.Sprintf("%dHz %s %s x%d", f.SampleRate, f.Layout, f.Format, f.BufferSize)
}

// AssetID identifies a loaded sample in a [SoundPool].
type AssetID int

// StreamID identifies an active playback stream in a [SoundPool].
type StreamID int

// BuiltinIdleAsset is the asset reference of the procedurally generated
// engine idle sample every [SoundPool] adapter in this module understands.
const BuiltinIdleAsset = "builtin:idle"

// NoStream is the zero StreamID, returned by [SoundPool.Play] on failure.
const NoStream StreamID = 0

// Capability names a platform permission.
type Capability string

// RecordAudio is the capability required to open the microphone.
const RecordAudio Capability = "record_audio"
