package engine

import (
	"math"

	"github.com/MrWong99/micengine/pkg/audio"
)

// Map converts a smoothed level in [0,1] into target playback parameters.
// Both curves are monotonic non-decreasing in s and stay inside the
// configured volume and rate ranges.
func (t Tuning) Map(s float64) Params {
	s = clamp(s, 0, 1)
	volumeFactor := math.Pow(s, t.VolumeExponent)
	rpmFactor := math.Pow(s, t.RateExponent)
	return Params{
		Volume: clamp(t.MinVolume+volumeFactor*(t.MaxVolume-t.MinVolume), t.MinVolume, t.MaxVolume),
		Rate:   clamp(t.MinRate+rpmFactor*(t.MaxRate-t.MinRate), t.MinRate, t.MaxRate),
	}
}

// Process is one capture-loop iteration: it estimates the level of block
// against the level stored in st, maps it onto targets, and writes both back.
// An empty block changes nothing. It must only be called from the capture
// goroutine.
func (t Tuning) Process(st *State, block audio.SampleBlock) (level float64, targets Params) {
	if len(block) == 0 {
		return st.Level(), st.Targets()
	}
	level = t.Level(block, st.Level())
	targets = t.Map(level)
	st.setLevel(level)
	st.setTargets(targets)
	return level, targets
}

// Progress converts applied parameters into a display value in [0,100]: the
// mean of volume and rate, each normalised onto its range.
func (t Tuning) Progress(p Params) int {
	v := normalise(p.Volume, t.MinVolume, t.MaxVolume)
	r := normalise(p.Rate, t.MinRate, t.MaxRate)
	return int(math.Round((v + r) / 2 * 100))
}

func normalise(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}
