package config

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// TuningChanged is true if any engine tuning value changed. Tuning is
	// applied to a running session without restarting it.
	TuningChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the sections whose changes only take effect
	// after the program is restarted.
	RestartRequired []string
}

// Empty reports whether d holds no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.TuningChanged && !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Engine.Tuning() != new.Engine.Tuning() {
		d.TuningChanged = true
	}

	if old.Server.LogFile != new.Server.LogFile || old.Server.MetricsAddr != new.Server.MetricsAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Engine.Tick != new.Engine.Tick {
		d.RestartRequired = append(d.RestartRequired, "engine.tick")
	}
	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if old.Playback != new.Playback {
		d.RestartRequired = append(d.RestartRequired, "playback")
	}

	return d
}
