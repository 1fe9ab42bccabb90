package playback

import (
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// sink is the output device. The production sink is the global beep speaker;
// tests substitute one that pulls samples on demand.
type sink interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close()
}

type speakerSink struct{}

func (speakerSink) Init(sr beep.SampleRate, bufferSize int) error {
	return speaker.Init(sr, bufferSize)
}

func (speakerSink) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerSink) Lock()                { speaker.Lock() }
func (speakerSink) Unlock()              { speaker.Unlock() }

func (speakerSink) Close() {
	speaker.Clear()
	speaker.Close()
}
