// Package engine implements the engine-sound control loop: the Level
// Estimator, the Response Mapper, the Parameter Ramp Controller, and the
// Playback Session state machine.
//
// Data flows in one direction:
//
//	capture goroutine: SampleBlock → [Tuning.Level] → [Tuning.Map] → State targets
//	render goroutine:  State targets → [Tuning.Tick] → [Playback.Update]
//
// [State] is shared by the two goroutines. Each field group has exactly one
// writer: targets and the smoothed level are written by the capture side,
// the current parameters by the render side. Every field is stored
// atomically, so readers on the other side see a value that is at most one
// iteration stale but never torn.
//
// This package lives under internal/ because it encapsulates application-private
// processing logic and is not intended to be imported by external code.
package engine

import (
	"errors"
	"fmt"
	"math"
)

// Params is a (volume, rate) pair applied to the playing engine sound.
type Params struct {
	// Volume is the playback gain applied to both channels.
	Volume float64

	// Rate is the playback speed multiplier; it shifts both pitch and tempo.
	Rate float64
}

// String returns e.g. "vol=0.500 rate=1.200".
func (p Params) String() string {
	return fmt.Sprintf("vol=%.3f rate=%.3f", p.Volume, p.Rate)
}

// Tuning holds the empirically tuned policy constants of the control loop.
// The zero value is not usable; start from [DefaultTuning].
type Tuning struct {
	MinVolume float64
	MaxVolume float64
	MinRate   float64
	MaxRate   float64

	// VolumeStep and RateStep bound the per-tick change of the current values.
	VolumeStep float64
	RateStep   float64

	// MicSensitivity scales the normalised RMS before clamping to [0,1].
	MicSensitivity float64

	// NoiseThreshold is the normalised level below which input is treated as silence.
	NoiseThreshold float64

	// Smoothing is the weight of the previous level in the exponential average.
	Smoothing float64

	// VolumeExponent and RateExponent shape the response curves. Volume uses
	// the smaller exponent so it reacts slightly faster than pitch near silence.
	VolumeExponent float64
	RateExponent   float64
}

// DefaultTuning returns the tuning the engine ships with.
func DefaultTuning() Tuning {
	return Tuning{
		MinVolume:      0.2,
		MaxVolume:      1.0,
		MinRate:        0.6,
		MaxRate:        2.5,
		VolumeStep:     0.02,
		RateStep:       0.02,
		MicSensitivity: 2.5,
		NoiseThreshold: 0.05,
		Smoothing:      0.7,
		VolumeExponent: 1.2,
		RateExponent:   1.3,
	}
}

// Minimum returns the resting (minimum volume, minimum rate) pair.
func (t Tuning) Minimum() Params {
	return Params{Volume: t.MinVolume, Rate: t.MinRate}
}

// Validate reports every out-of-range field, joined into a single error.
func (t Tuning) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(t.MinVolume >= 0 && t.MinVolume <= t.MaxVolume,
		"min_volume %.3f must be in [0, max_volume]", t.MinVolume)
	check(t.MaxVolume <= 1, "max_volume %.3f must be <= 1", t.MaxVolume)
	check(t.MinRate > 0 && t.MinRate <= t.MaxRate,
		"min_rate %.3f must be in (0, max_rate]", t.MinRate)
	check(t.VolumeStep > 0, "volume_step %.3f must be > 0", t.VolumeStep)
	check(t.RateStep > 0, "rate_step %.3f must be > 0", t.RateStep)
	check(t.MicSensitivity > 0, "mic_sensitivity %.3f must be > 0", t.MicSensitivity)
	check(t.NoiseThreshold >= 0 && t.NoiseThreshold < 1,
		"noise_threshold %.3f must be in [0, 1)", t.NoiseThreshold)
	check(t.Smoothing >= 0 && t.Smoothing < 1,
		"smoothing %.3f must be in [0, 1)", t.Smoothing)
	check(t.VolumeExponent > 0, "volume_exponent %.3f must be > 0", t.VolumeExponent)
	check(t.RateExponent > 0, "rate_exponent %.3f must be > 0", t.RateExponent)

	return errors.Join(errs...)
}

// clamp limits v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
