// Package ui provides the Bubbletea terminal user interface for micengine:
// one start/stop control, an engine gauge and transient toasts.
package ui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// toastTTL is how long a toast stays on screen.
const toastTTL = 3 * time.Second

// Toggler is the start/stop action behind the control.
type Toggler interface {
	Toggle(ctx context.Context) error
}

type keyMap struct {
	Toggle key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Toggle, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "start/stop")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the Bubbletea model for the engine screen.
type Model struct {
	ctx     context.Context
	toggler Toggler
	display *Display

	label    string
	enabled  bool
	progress int
	toast    string
	toastSeq int
	busy     bool

	bar  progress.Model
	help help.Model

	Width int
}

// NewModel returns a model fed by display. Toggling runs toggler with ctx.
func NewModel(ctx context.Context, toggler Toggler, display *Display) Model {
	return Model{
		ctx:     ctx,
		toggler: toggler,
		display: display,
		label:   "Start",
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:    help.New(),
	}
}

// Init starts listening for control-loop messages.
func (m Model) Init() tea.Cmd {
	return m.display.wait()
}

// Update handles keyboard input and control-loop messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if !m.enabled || m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.toggle()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-4))

	case toggledMsg:
		m.busy = false
		if msg.err != nil {
			slog.Debug("ui: toggle refused", "err", msg.err)
		}

	case ProgressMsg:
		m.progress = max(0, min(100, msg.Value))
		return m, m.display.wait()

	case EnabledMsg:
		m.enabled = msg.Enabled
		return m, m.display.wait()

	case LabelMsg:
		m.label = msg.Label
		return m, m.display.wait()

	case ToastMsg:
		m.toastSeq++
		m.toast = msg.Text
		seq := m.toastSeq
		return m, tea.Batch(m.display.wait(), tea.Tick(toastTTL, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		}))

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
	}
	return m, nil
}

func (m Model) toggle() tea.Cmd {
	ctx, t := m.ctx, m.toggler
	return func() tea.Msg {
		return toggledMsg{err: t.Toggle(ctx)}
	}
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("micengine"))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(float64(m.progress) / 100))
	b.WriteString(" ")
	b.WriteString(gaugeStyle.Render(formatPercent(m.progress)))
	b.WriteString("\n\n")

	button := buttonStyle
	if !m.enabled {
		button = disabledButtonStyle
	}
	b.WriteString(button.Render(m.label))
	b.WriteString("\n")

	if m.toast != "" {
		b.WriteString("\n")
		b.WriteString(toastStyle.Render(m.toast))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	b.WriteString("\n")
	return b.String()
}
