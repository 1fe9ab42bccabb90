package playback

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/faiface/beep"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/micengine/pkg/audio"
)

// asset is a decoded sample held in memory at its native sample rate.
type asset struct {
	buf *beep.Buffer
}

// ratio returns the resampling ratio that plays a at its natural speed on
// an output running at out.
func (a *asset) ratio(out beep.SampleRate) float64 {
	return float64(a.buf.Format().SampleRate) / float64(out)
}

func loadAsset(ref string, out beep.SampleRate) (*asset, error) {
	if ref == audio.BuiltinIdleAsset {
		return fromPCM(idleSample(int(out)), 16)
	}
	return loadWAV(ref)
}

// loadWAV decodes the whole WAV file at path into memory.
func loadWAV(path string) (*asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrAssetLoad, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", audio.ErrAssetLoad, path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", audio.ErrAssetLoad, path, err)
	}
	return fromPCM(pcm, int(dec.BitDepth))
}

// fromPCM converts integer PCM into a stereo beep buffer. Mono input is
// duplicated onto both channels; channels beyond the second are dropped.
func fromPCM(pcm *goaudio.IntBuffer, bitDepth int) (*asset, error) {
	if pcm == nil || pcm.Format == nil || pcm.Format.NumChannels < 1 || pcm.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing PCM format", audio.ErrAssetLoad)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", audio.ErrAssetLoad, bitDepth)
	}
	ch := pcm.Format.NumChannels
	frames := len(pcm.Data) / ch
	if frames == 0 {
		return nil, fmt.Errorf("%w: no audio frames", audio.ErrAssetLoad)
	}

	scale := float64(int64(1) << (bitDepth - 1))
	sample := func(v int) float64 {
		if bitDepth == 8 {
			// 8-bit WAV is unsigned.
			return float64(v-128) / 128
		}
		return float64(v) / scale
	}

	samples := make([][2]float64, frames)
	for i := range samples {
		l := sample(pcm.Data[i*ch])
		r := l
		if ch > 1 {
			r = sample(pcm.Data[i*ch+1])
		}
		samples[i] = [2]float64{l, r}
	}

	buf := beep.NewBuffer(beep.Format{
		SampleRate:  beep.SampleRate(pcm.Format.SampleRate),
		NumChannels: 2,
		Precision:   (bitDepth + 7) / 8,
	})
	buf.Append(&frameStreamer{frames: samples})
	return &asset{buf: buf}, nil
}

// frameStreamer streams a fixed slice of frames once.
type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (s *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.frames) {
		return 0, false
	}
	n := copy(samples, s.frames[s.pos:])
	s.pos += n
	return n, true
}

func (s *frameStreamer) Err() error { return nil }

// Idle sample shape: a four-stroke engine at idle fires in pulses; the
// pulse rate is the fundamental and the decay gives the "chug".
const (
	idleFiringHz  = 30.0
	idleHarmonics = 8
	idleDecay     = 5.0
	idleNoise     = 0.15
	idlePeak      = 0.8
)

// idleSample synthesises one second of engine idle as 16-bit mono PCM. The
// firing rate divides the sample length exactly, so the buffer loops without
// a seam.
func idleSample(sampleRate int) *goaudio.IntBuffer {
	rng := rand.New(rand.NewPCG(0x6d6963, 0x656e67))
	raw := make([]float64, sampleRate)
	peak := 0.0
	for i := range raw {
		t := float64(i) / float64(sampleRate)
		_, phase := math.Modf(t * idleFiringHz)
		env := math.Exp(-idleDecay * phase)

		var v float64
		for k := 1; k <= idleHarmonics; k++ {
			v += math.Sin(2*math.Pi*float64(k)*idleFiringHz*t+float64(k)) / float64(k)
		}
		v = v*(0.5+0.5*env) + idleNoise*env*(rng.Float64()*2-1)
		raw[i] = v
		peak = math.Max(peak, math.Abs(v))
	}

	data := make([]int, len(raw))
	for i, v := range raw {
		data[i] = int(math.Round(v / peak * idlePeak * math.MaxInt16))
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
}
