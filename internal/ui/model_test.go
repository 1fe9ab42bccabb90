package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeToggler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeToggler) Toggle(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeToggler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestModel(t *testing.T) (Model, *fakeToggler) {
	t.Helper()
	d := NewDisplay()
	t.Cleanup(d.Close)
	tg := &fakeToggler{}
	return NewModel(context.Background(), tg, d), tg
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

var space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}

func TestModel_ToggleRequiresEnabledControl(t *testing.T) {
	m, tg := newTestModel(t)

	m, cmd := update(t, m, space)
	if cmd != nil {
		t.Fatal("toggle command issued while control disabled")
	}

	m, _ = update(t, m, EnabledMsg{Enabled: true})
	m, cmd = update(t, m, space)
	if cmd == nil {
		t.Fatal("no toggle command with control enabled")
	}

	// A second press while the first toggle is in flight is ignored.
	m, again := update(t, m, space)
	if again != nil {
		t.Error("toggle command issued while busy")
	}

	msg := cmd()
	if tg.count() != 1 {
		t.Errorf("Toggle called %d times, want 1", tg.count())
	}
	m, _ = update(t, m, msg)
	if m.busy {
		t.Error("model still busy after toggle result")
	}
}

func TestModel_LabelAndProgress(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, LabelMsg{Label: "Stop"})
	m, _ = update(t, m, ProgressMsg{Value: 150})

	if m.progress != 100 {
		t.Errorf("progress = %d, want clamped to 100", m.progress)
	}
	view := m.View()
	if !strings.Contains(view, "Stop") {
		t.Errorf("view missing label:\n%s", view)
	}
	if !strings.Contains(view, "100%") {
		t.Errorf("view missing gauge value:\n%s", view)
	}

	m, _ = update(t, m, ProgressMsg{Value: -5})
	if m.progress != 0 {
		t.Errorf("progress = %d, want clamped to 0", m.progress)
	}
}

func TestModel_ToastExpires(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, ToastMsg{Text: "Recording failed"})
	if !strings.Contains(m.View(), "Recording failed") {
		t.Fatal("toast not rendered")
	}
	first := m.toastSeq

	m, _ = update(t, m, ToastMsg{Text: "Microphone is unavailable"})

	// Expiry of the older toast leaves the newer one on screen.
	m, _ = update(t, m, toastExpiredMsg{seq: first})
	if m.toast != "Microphone is unavailable" {
		t.Errorf("toast = %q after stale expiry", m.toast)
	}

	m, _ = update(t, m, toastExpiredMsg{seq: m.toastSeq})
	if m.toast != "" {
		t.Errorf("toast = %q, want cleared", m.toast)
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("no command for quit key")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key did not produce tea.QuitMsg")
	}
}

func TestDisplay_DeliversInOrder(t *testing.T) {
	d := NewDisplay()
	defer d.Close()

	d.SetControlEnabled(true)
	d.SetControlLabel("Stop")
	d.Notify("hello")

	want := []tea.Msg{EnabledMsg{Enabled: true}, LabelMsg{Label: "Stop"}, ToastMsg{Text: "hello"}}
	for i, w := range want {
		if got := d.wait()(); got != w {
			t.Errorf("message %d = %#v, want %#v", i, got, w)
		}
	}
}

func TestDisplay_DropsProgressWhenFull(t *testing.T) {
	d := NewDisplay()
	defer d.Close()

	done := make(chan struct{})
	go func() {
		for i := range displayBuffer * 2 {
			d.SetProgress(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetProgress blocked on a full queue")
	}
	if got := d.wait()(); got != (ProgressMsg{Value: 0}) {
		t.Errorf("first message = %#v, want ProgressMsg{0}", got)
	}
}

func TestDisplay_CloseUnblocks(t *testing.T) {
	d := NewDisplay()
	for range displayBuffer {
		d.Notify("fill")
	}
	d.Close()

	done := make(chan struct{})
	go func() {
		d.Notify("after close")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked after Close")
	}
}
