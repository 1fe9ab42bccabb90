package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A missing file is not an error: [Default] is returned instead.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Fields absent from the document keep their default.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Engine
	if cfg.Engine.Tick <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick %s must be positive", cfg.Engine.Tick))
	}
	if err := cfg.Engine.Tuning().Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			errs = append(errs, fmt.Errorf("engine.%s", line))
		}
	}

	// Capture
	if cfg.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", cfg.Capture.SampleRate))
	}
	if cfg.Capture.Channels != 1 && cfg.Capture.Channels != 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is invalid; valid values: 1, 2", cfg.Capture.Channels))
	}
	if cfg.Capture.Block <= 0 {
		errs = append(errs, fmt.Errorf("capture.block %s must be positive", cfg.Capture.Block))
	} else if cfg.Capture.SampleRate > 0 && cfg.Capture.Format().BufferSize == 0 {
		errs = append(errs, fmt.Errorf("capture.block %s is shorter than one sample", cfg.Capture.Block))
	}
	if cfg.Capture.MaxConsecutiveErrors < 1 {
		errs = append(errs, fmt.Errorf("capture.max_consecutive_errors %d must be at least 1", cfg.Capture.MaxConsecutiveErrors))
	}
	if cfg.Capture.ErrorCooldown <= 0 {
		errs = append(errs, fmt.Errorf("capture.error_cooldown %s must be positive", cfg.Capture.ErrorCooldown))
	}

	// Playback
	if cfg.Playback.Asset == "" {
		errs = append(errs, fmt.Errorf("playback.asset is required; use %q for the built-in sample", BuiltinAsset))
	}
	if cfg.Playback.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("playback.sample_rate %d must be positive", cfg.Playback.SampleRate))
	}
	if cfg.Playback.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("playback.buffer %s must be positive", cfg.Playback.Buffer))
	}

	return errors.Join(errs...)
}
