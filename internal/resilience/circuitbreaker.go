// Package resilience guards flaky device I/O with a circuit breaker.
//
// [CircuitBreaker] is a three-state breaker (closed → open → half-open). The
// capture loop routes every microphone read through one so that a device
// that keeps failing ends the session instead of spinning on errors, and a
// fresh session is refused until the device has had time to recover.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is in
// the open state and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state: all calls are forwarded.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped due to consecutive failures.
	// Calls are rejected with [ErrCircuitOpen] until the reset timeout elapses.
	StateOpen

	// StateHalfOpen is the trial state entered after the reset timeout. A
	// limited number of calls are let through; if they all succeed the
	// breaker closes, a single failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before transitioning to
	// half-open. Default: 2s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful trial calls needed in the half-open
	// state to close the breaker. Default: 1.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition. It runs
	// without the breaker's lock held.
	OnStateChange func(from, to State)
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	onChange     func(from, to State)
	now          func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied configuration.
// Zero-value config fields are replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 2 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		onChange:     cfg.OnStateChange,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. In the half-open state at most
// HalfOpenMax trial calls are in flight.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	var from, to State
	changed := false
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		from, to, changed = cb.setLocked(StateHalfOpen)
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	trial := cb.state == StateHalfOpen
	if trial {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	if changed {
		cb.notify(from, to)
	}

	err := fn()

	cb.mu.Lock()
	if err != nil {
		from, to, changed = cb.failureLocked(trial)
	} else {
		from, to, changed = cb.successLocked(trial)
	}
	cb.mu.Unlock()
	if changed {
		cb.notify(from, to)
	}
	return err
}

// failureLocked handles failure accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) failureLocked(trial bool) (State, State, bool) {
	if trial {
		cb.openedAt = cb.now()
		slog.Warn("circuit breaker re-opened from half-open", "name", cb.name)
		return cb.setLocked(StateOpen)
	}
	if cb.state != StateClosed {
		// A call admitted before a concurrent trip; the breaker is already open.
		return cb.state, cb.state, false
	}
	cb.consecutiveFail++
	if cb.consecutiveFail < cb.maxFailures {
		return cb.state, cb.state, false
	}
	cb.openedAt = cb.now()
	slog.Warn("circuit breaker opened",
		"name", cb.name,
		"consecutive_failures", cb.consecutiveFail)
	return cb.setLocked(StateOpen)
}

// successLocked handles success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) successLocked(trial bool) (State, State, bool) {
	if !trial {
		cb.consecutiveFail = 0
		return cb.state, cb.state, false
	}
	if cb.state != StateHalfOpen {
		return cb.state, cb.state, false
	}
	cb.halfOpenOK++
	if cb.halfOpenOK < cb.halfOpenMax {
		return cb.state, cb.state, false
	}
	cb.consecutiveFail = 0
	slog.Info("circuit breaker closed after successful trial calls", "name", cb.name)
	return cb.setLocked(StateClosed)
}

func (cb *CircuitBreaker) setLocked(s State) (from, to State, changed bool) {
	from = cb.state
	cb.state = s
	return from, s, from != s
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onChange != nil {
		cb.onChange(from, to)
	}
}

// State returns the current [State] of the breaker. If the breaker is open and
// the reset timeout has elapsed, the returned state is [StateHalfOpen] (the
// actual transition happens on the next [CircuitBreaker.Execute] call).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Failures returns the current count of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFail
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
	from, to, changed := cb.setLocked(StateClosed)
	cb.mu.Unlock()

	if changed {
		slog.Info("circuit breaker manually reset", "name", cb.name)
		cb.notify(from, to)
	}
}
