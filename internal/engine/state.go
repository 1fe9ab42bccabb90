package engine

import (
	"math"
	"sync/atomic"
)

// State is the mutable record shared by the capture and render goroutines
// for the lifetime of a session.
//
// Each (volume, rate) pair is published as one immutable [Params] value so a
// reader never observes a volume from one update and a rate from another.
type State struct {
	targets atomic.Pointer[Params]
	current atomic.Pointer[Params]
	level   atomic.Uint64 // math.Float64bits of the smoothed level
}

// NewState returns a State resting at the minimum of t.
func NewState(t Tuning) *State {
	st := &State{}
	st.Reset(t)
	return st
}

// Reset puts current and target back to the minimum of t and clears the
// smoothed level. Call it only while neither loop is running.
func (st *State) Reset(t Tuning) {
	m := t.Minimum()
	st.setTargets(m)
	st.setCurrent(m)
	st.setLevel(0)
}

// Targets returns the latest target parameters written by the capture side.
func (st *State) Targets() Params {
	return *st.targets.Load()
}

// Current returns the latest parameters applied by the render side.
func (st *State) Current() Params {
	return *st.current.Load()
}

// Level returns the latest smoothed loudness in [0,1].
func (st *State) Level() float64 {
	return math.Float64frombits(st.level.Load())
}

func (st *State) setTargets(p Params) { st.targets.Store(&p) }
func (st *State) setCurrent(p Params) { st.current.Store(&p) }
func (st *State) setLevel(v float64)  { st.level.Store(math.Float64bits(v)) }
