package engine

import (
	"math"
	"testing"

	"github.com/MrWong99/micengine/pkg/audio"
)

func TestTuning_Map_Bounds(t *testing.T) {
	tu := DefaultTuning()

	if got := tu.Map(0); got != tu.Minimum() {
		t.Errorf("Map(0) = %v, want %v", got, tu.Minimum())
	}

	top := tu.Map(1)
	if math.Abs(top.Volume-tu.MaxVolume) > eps || math.Abs(top.Rate-tu.MaxRate) > eps {
		t.Errorf("Map(1) = %v, want vol=%v rate=%v", top, tu.MaxVolume, tu.MaxRate)
	}

	if got := tu.Map(-0.5); got != tu.Map(0) {
		t.Errorf("Map(-0.5) = %v, want clamped to Map(0)", got)
	}
	if got := tu.Map(3); got != tu.Map(1) {
		t.Errorf("Map(3) = %v, want clamped to Map(1)", got)
	}
}

func TestTuning_Map_Curves(t *testing.T) {
	tu := DefaultTuning()
	p := tu.Map(0.5)
	wantVol := 0.2 + math.Pow(0.5, 1.2)*0.8
	wantRate := 0.6 + math.Pow(0.5, 1.3)*1.9
	if math.Abs(p.Volume-wantVol) > eps {
		t.Errorf("Map(0.5).Volume = %v, want %v", p.Volume, wantVol)
	}
	if math.Abs(p.Rate-wantRate) > eps {
		t.Errorf("Map(0.5).Rate = %v, want %v", p.Rate, wantRate)
	}
}

func TestTuning_Map_MonotonicAndBounded(t *testing.T) {
	tu := DefaultTuning()
	prev := tu.Map(0)
	for i := 1; i <= 1000; i++ {
		p := tu.Map(float64(i) / 1000)
		if p.Volume < prev.Volume || p.Rate < prev.Rate {
			t.Fatalf("Map not monotonic at s=%v: %v after %v", float64(i)/1000, p, prev)
		}
		if p.Volume < tu.MinVolume || p.Volume > tu.MaxVolume {
			t.Fatalf("volume %v out of range at s=%v", p.Volume, float64(i)/1000)
		}
		if p.Rate < tu.MinRate || p.Rate > tu.MaxRate {
			t.Fatalf("rate %v out of range at s=%v", p.Rate, float64(i)/1000)
		}
		prev = p
	}
}

func TestTuning_Process(t *testing.T) {
	tu := DefaultTuning()
	st := NewState(tu)

	level, targets := tu.Process(st, nil)
	if level != 0 || targets != tu.Minimum() {
		t.Fatalf("empty block: got level=%v targets=%v, want unchanged", level, targets)
	}

	level, targets = tu.Process(st, constBlock(882, math.MaxInt16))
	if math.Abs(level-0.3) > eps {
		t.Errorf("level = %v, want 0.3", level)
	}
	if st.Level() != level {
		t.Errorf("State.Level() = %v, want %v", st.Level(), level)
	}
	if st.Targets() != targets || targets != tu.Map(level) {
		t.Errorf("targets = %v, state = %v, want Map(level) = %v", targets, st.Targets(), tu.Map(level))
	}
	if st.Current() != tu.Minimum() {
		t.Errorf("Process must not touch current, got %v", st.Current())
	}
}

func TestTuning_Process_MaxAmplitudeDrivesMaxTargets(t *testing.T) {
	tu := DefaultTuning()
	st := NewState(tu)
	for range 100 {
		tu.Process(st, constBlock(882, math.MinInt16))
	}
	got := st.Targets()
	if math.Abs(got.Volume-tu.MaxVolume) > eps || math.Abs(got.Rate-tu.MaxRate) > eps {
		t.Errorf("targets = %v, want max", got)
	}
}

func TestTuning_Process_SilenceDrivesMinTargets(t *testing.T) {
	tu := DefaultTuning()
	st := NewState(tu)
	tu.Process(st, constBlock(882, math.MaxInt16))
	for range 200 {
		tu.Process(st, audio.SampleBlock{0, 0, 0, 0})
	}
	if st.Level() != 0 {
		t.Errorf("level = %v, want 0", st.Level())
	}
	if st.Targets() != tu.Minimum() {
		t.Errorf("targets = %v, want minimum", st.Targets())
	}
}

func TestTuning_Progress(t *testing.T) {
	tu := DefaultTuning()
	tests := []struct {
		name string
		p    Params
		want int
	}{
		{"minimum", tu.Minimum(), 0},
		{"maximum", Params{Volume: tu.MaxVolume, Rate: tu.MaxRate}, 100},
		{"volume only", Params{Volume: tu.MaxVolume, Rate: tu.MinRate}, 50},
		{"below range", Params{Volume: 0, Rate: 0}, 0},
		{"above range", Params{Volume: 5, Rate: 5}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tu.Progress(tt.p); got != tt.want {
				t.Errorf("Progress(%v) = %d, want %d", tt.p, got, tt.want)
			}
		})
	}
}
