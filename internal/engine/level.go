package engine

import (
	"math"

	"github.com/MrWong99/micengine/pkg/audio"
)

// fullScale is the magnitude of the most negative int16 sample.
const fullScale = 32768.0

// settle is the distance from 0 or 1 below which a smoothed level snaps to
// the bound. Without it the exponential average only approaches the bounds
// asymptotically and the targets never quite reach their limits.
const settle = 1e-9

// RMS returns the root-mean-square amplitude of block, in sample units.
// An empty block has an RMS of 0.
func RMS(block audio.SampleBlock) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(block)))
}

// Normalize converts an RMS amplitude into a sensitivity-scaled level in [0,1].
func (t Tuning) Normalize(rms float64) float64 {
	return clamp(rms/fullScale*t.MicSensitivity, 0, 1)
}

// Gate zeroes levels below the noise threshold and rescales the remainder
// back onto [0,1], so there is no dead zone above the threshold.
func (t Tuning) Gate(raw float64) float64 {
	if raw < t.NoiseThreshold {
		return 0
	}
	return clamp((raw-t.NoiseThreshold)/(1-t.NoiseThreshold), 0, 1)
}

// Smooth blends the gated level into the previous smoothed level:
// Smoothing*prev + (1-Smoothing)*gated. A result within settle of 0 or 1
// snaps to that bound, so silence or full-scale input reaches it in a finite
// number of blocks instead of approaching it forever.
func (t Tuning) Smooth(prev, gated float64) float64 {
	s := t.Smoothing*prev + (1-t.Smoothing)*gated
	switch {
	case s < settle:
		return 0
	case s > 1-settle:
		return 1
	}
	return s
}

// Level runs the full estimator on block: RMS, normalisation, noise gate and
// exponential smoothing against prev. An empty block leaves the level unchanged.
func (t Tuning) Level(block audio.SampleBlock, prev float64) float64 {
	if len(block) == 0 {
		return prev
	}
	return t.Smooth(prev, t.Gate(t.Normalize(RMS(block))))
}
