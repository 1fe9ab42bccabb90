package app

import (
	"errors"

	"github.com/MrWong99/micengine/internal/engine"
)

// Error taxonomy. Callers match with [errors.Is]; concrete errors wrap these
// with context via fmt.Errorf("...: %w").
var (
	// ErrConfiguration is an invalid setup. Fatal at startup, rejected on
	// hot reload.
	ErrConfiguration = errors.New("app: invalid configuration")

	// ErrPermissionDenied means microphone access was refused. The start
	// control stays disabled.
	ErrPermissionDenied = errors.New("app: microphone permission denied")

	// ErrAssetLoad means the engine sample is unavailable. Sessions cannot
	// start until it loads.
	ErrAssetLoad = errors.New("app: engine sound unavailable")

	// ErrCaptureIO covers microphone failures. Single read errors are
	// logged and skipped; repeated ones end the session.
	ErrCaptureIO = errors.New("app: microphone capture failed")

	// ErrPlayback is raised by the playback session and never escapes the
	// render loop; the stream is restarted on the next tick.
	ErrPlayback = engine.ErrPlayback
)

// User-facing toast messages.
const (
	msgPermissionDenied = "Microphone permission is required to start the engine"
	msgAssetLoading     = "Engine sound is still loading"
	msgAssetFailed      = "Could not load the engine sound"
	msgMicUnavailable   = "Microphone is unavailable"
	msgMicCoolingDown   = "Microphone is recovering, try again shortly"
	msgRecordingFailed  = "Recording failed"
)

// Control labels.
const (
	labelStart = "Start"
	labelStop  = "Stop"
)
