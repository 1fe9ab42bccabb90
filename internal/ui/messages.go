package ui

// Messages delivered from the control loop to the model through [Display].

// ProgressMsg sets the engine gauge, 0..100.
type ProgressMsg struct{ Value int }

// EnabledMsg enables or disables the start/stop control.
type EnabledMsg struct{ Enabled bool }

// LabelMsg relabels the start/stop control.
type LabelMsg struct{ Label string }

// ToastMsg shows a transient message.
type ToastMsg struct{ Text string }

// toggledMsg carries the result of a toggle started from the keyboard.
type toggledMsg struct{ err error }

// toastExpiredMsg clears the toast with the given sequence number.
type toastExpiredMsg struct{ seq int }
