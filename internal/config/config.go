// Package config provides the configuration schema and loader for micengine.
//
// A config file is optional. Every field has a default (see [Default]); a
// file only needs to name the values it overrides.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/micengine/internal/engine"
	"github.com/MrWong99/micengine/pkg/audio"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BuiltinAsset selects the procedurally generated idle engine sample.
const BuiltinAsset = audio.BuiltinIdleAsset

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Capture  CaptureConfig  `yaml:"capture"`
	Playback PlaybackConfig `yaml:"playback"`
}

// ServerConfig holds logging and the optional observability listener.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile receives log output while the terminal UI owns the screen.
	LogFile string `yaml:"log_file"`

	// MetricsAddr, when set, serves /metrics, /healthz and /readyz on this
	// TCP address (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
}

// EngineConfig holds the render tick and the control-loop tuning.
// All tuning fields can be changed while a session runs.
type EngineConfig struct {
	// Tick is the render loop period.
	Tick time.Duration `yaml:"tick"`

	MinVolume      float64 `yaml:"min_volume"`
	MaxVolume      float64 `yaml:"max_volume"`
	MinRate        float64 `yaml:"min_rate"`
	MaxRate        float64 `yaml:"max_rate"`
	VolumeStep     float64 `yaml:"volume_step"`
	RateStep       float64 `yaml:"rate_step"`
	MicSensitivity float64 `yaml:"mic_sensitivity"`
	NoiseThreshold float64 `yaml:"noise_threshold"`
	Smoothing      float64 `yaml:"smoothing"`
	VolumeExponent float64 `yaml:"volume_exponent"`
	RateExponent   float64 `yaml:"rate_exponent"`
}

// Tuning returns the control-loop constants held by c.
func (c EngineConfig) Tuning() engine.Tuning {
	return engine.Tuning{
		MinVolume:      c.MinVolume,
		MaxVolume:      c.MaxVolume,
		MinRate:        c.MinRate,
		MaxRate:        c.MaxRate,
		VolumeStep:     c.VolumeStep,
		RateStep:       c.RateStep,
		MicSensitivity: c.MicSensitivity,
		NoiseThreshold: c.NoiseThreshold,
		Smoothing:      c.Smoothing,
		VolumeExponent: c.VolumeExponent,
		RateExponent:   c.RateExponent,
	}
}

// CaptureConfig describes the microphone stream.
type CaptureConfig struct {
	SampleRate int `yaml:"sample_rate"`

	// Channels is 1 (mono) or 2 (stereo).
	Channels int `yaml:"channels"`

	// Block is the duration of audio requested per read.
	Block time.Duration `yaml:"block"`

	// MaxConsecutiveErrors is the number of failed reads in a row that ends
	// the session.
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors"`

	// ErrorCooldown is how long the capture breaker stays open before a read
	// is retried.
	ErrorCooldown time.Duration `yaml:"error_cooldown"`
}

// Format returns the capture format requested from the microphone. The
// buffer size is one block worth of samples across all channels.
func (c CaptureConfig) Format() audio.CaptureFormat {
	frames := int(int64(c.SampleRate) * int64(c.Block) / int64(time.Second))
	return audio.CaptureFormat{
		SampleRate: c.SampleRate,
		Layout:     audio.ChannelLayout(c.Channels),
		Format:     audio.PCM16,
		BufferSize: frames * c.Channels,
	}
}

// PlaybackConfig describes the engine sample and the output device.
type PlaybackConfig struct {
	// Asset is a WAV file path or [BuiltinAsset].
	Asset string `yaml:"asset"`

	SampleRate int `yaml:"sample_rate"`

	// Buffer is the output device buffer length.
	Buffer time.Duration `yaml:"buffer"`
}

// Default returns a config holding every default value.
func Default() *Config {
	t := engine.DefaultTuning()
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
			LogFile:  "micengine.log",
		},
		Engine: EngineConfig{
			Tick:           50 * time.Millisecond,
			MinVolume:      t.MinVolume,
			MaxVolume:      t.MaxVolume,
			MinRate:        t.MinRate,
			MaxRate:        t.MaxRate,
			VolumeStep:     t.VolumeStep,
			RateStep:       t.RateStep,
			MicSensitivity: t.MicSensitivity,
			NoiseThreshold: t.NoiseThreshold,
			Smoothing:      t.Smoothing,
			VolumeExponent: t.VolumeExponent,
			RateExponent:   t.RateExponent,
		},
		Capture: CaptureConfig{
			SampleRate:           44100,
			Channels:             1,
			Block:                20 * time.Millisecond,
			MaxConsecutiveErrors: 5,
			ErrorCooldown:        2 * time.Second,
		},
		Playback: PlaybackConfig{
			Asset:      BuiltinAsset,
			SampleRate: 44100,
			Buffer:     100 * time.Millisecond,
		},
	}
}

// ApplyDefaults fills structural fields that are left at their zero value.
// Tuning values are not touched because zero is meaningful for some of them;
// configs built in code should start from [Default] instead.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
	if c.Server.LogFile == "" {
		c.Server.LogFile = d.Server.LogFile
	}
	if c.Engine.Tick == 0 {
		c.Engine.Tick = d.Engine.Tick
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = d.Capture.SampleRate
	}
	if c.Capture.Channels == 0 {
		c.Capture.Channels = d.Capture.Channels
	}
	if c.Capture.Block == 0 {
		c.Capture.Block = d.Capture.Block
	}
	if c.Capture.MaxConsecutiveErrors == 0 {
		c.Capture.MaxConsecutiveErrors = d.Capture.MaxConsecutiveErrors
	}
	if c.Capture.ErrorCooldown == 0 {
		c.Capture.ErrorCooldown = d.Capture.ErrorCooldown
	}
	if c.Playback.Asset == "" {
		c.Playback.Asset = d.Playback.Asset
	}
	if c.Playback.SampleRate == 0 {
		c.Playback.SampleRate = d.Playback.SampleRate
	}
	if c.Playback.Buffer == 0 {
		c.Playback.Buffer = d.Playback.Buffer
	}
}
