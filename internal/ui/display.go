package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// displayBuffer is the number of pending messages before progress updates
// start being dropped.
const displayBuffer = 64

// Display implements [audio.Display] by queueing messages for the model.
// It can be used before the bubbletea program starts.
//
// Progress updates are dropped when the queue is full since a newer one
// follows on the next tick. Control and toast updates are never dropped
// while the display is open.
type Display struct {
	ch        chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

// NewDisplay returns an open Display.
func NewDisplay() *Display {
	return &Display{
		ch:   make(chan tea.Msg, displayBuffer),
		done: make(chan struct{}),
	}
}

// SetProgress implements [audio.Display].
func (d *Display) SetProgress(value int) {
	select {
	case d.ch <- ProgressMsg{Value: value}:
	default:
	}
}

// SetControlEnabled implements [audio.Display].
func (d *Display) SetControlEnabled(enabled bool) { d.send(EnabledMsg{Enabled: enabled}) }

// SetControlLabel implements [audio.Display].
func (d *Display) SetControlLabel(label string) { d.send(LabelMsg{Label: label}) }

// Notify implements [audio.Display].
func (d *Display) Notify(message string) { d.send(ToastMsg{Text: message}) }

// Close stops delivery. Later calls are discarded. Safe to call more than once.
func (d *Display) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

func (d *Display) send(msg tea.Msg) {
	select {
	case d.ch <- msg:
	case <-d.done:
	}
}

// wait returns a command that delivers the next queued message.
func (d *Display) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-d.ch:
			return msg
		case <-d.done:
			return nil
		}
	}
}
