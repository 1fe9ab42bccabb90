package console

import (
	"fmt"
	"io"
	"sync"
)

// Display implements [audio.Display] as line output. Progress is only
// recorded; it is printed by the status command.
type Display struct {
	mu       sync.Mutex
	w        io.Writer
	progress int
	enabled  bool
	label    string
}

// NewDisplay returns a Display that prints to w.
func NewDisplay(w io.Writer) *Display {
	return &Display{w: w, label: "Start"}
}

// SetProgress implements [audio.Display].
func (d *Display) SetProgress(value int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = value
}

// SetControlEnabled implements [audio.Display].
func (d *Display) SetControlEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled == d.enabled {
		return
	}
	d.enabled = enabled
	if enabled {
		fmt.Fprintln(d.w, "ready: type 'start' to run the engine")
	}
}

// SetControlLabel implements [audio.Display].
func (d *Display) SetControlLabel(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.label = label
}

// Notify implements [audio.Display].
func (d *Display) Notify(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "[!] %s\n", message)
}

// snapshot returns the last progress, control state and label.
func (d *Display) snapshot() (progress int, enabled bool, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress, d.enabled, d.label
}
