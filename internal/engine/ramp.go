package engine

import "math"

// Step moves current toward target by at most the configured step sizes,
// independently for volume and rate, without overshooting.
func (t Tuning) Step(current, target Params) Params {
	return Params{
		Volume: approach(current.Volume, target.Volume, t.VolumeStep),
		Rate:   approach(current.Rate, target.Rate, t.RateStep),
	}
}

// Tick is one render-loop iteration: it reads the targets from st, steps the
// current parameters toward them and stores the result. It must only be
// called from the render goroutine.
func (t Tuning) Tick(st *State) Params {
	next := t.Step(st.Current(), st.Targets())
	st.setCurrent(next)
	return next
}

// TicksToConverge returns how many ticks a step change from current to
// target needs at the configured step sizes.
func (t Tuning) TicksToConverge(current, target Params) int {
	v := math.Ceil(math.Abs(target.Volume-current.Volume)/t.VolumeStep - settle)
	r := math.Ceil(math.Abs(target.Rate-current.Rate)/t.RateStep - settle)
	return int(math.Max(0, math.Max(v, r)))
}

// approach returns cur moved toward tgt by at most step. A result within
// rounding distance of tgt snaps to tgt, so accumulated float error never
// costs an extra tick.
func approach(cur, tgt, step float64) float64 {
	switch {
	case cur < tgt:
		next := cur + step
		if next >= tgt-settle {
			return tgt
		}
		return next
	case cur > tgt:
		next := cur - step
		if next <= tgt+settle {
			return tgt
		}
		return next
	}
	return cur
}
