// Package circuitbreaker implements the Circuit Breaker pattern.
// It keeps optional backends (the snapshot cache, the message broker) from
// dragging the ledger down with them when they fail.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down passes.
	StateOpen
	// StateHalfOpen lets a few trial calls through.
	StateHalfOpen
)

// String returns the string representation of the state.
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

var (
	// ErrCircuitOpen is returned while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open trial slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings tunes a breaker. Zero fields take the defaults noted below.
type Settings struct {
	// Failures in a row that open the circuit (5).
	FailureThreshold int
	// Successes in half-open state that close it (1).
	SuccessThreshold int
	// Cool-down before an open circuit lets a trial call through (30s).
	Timeout time.Duration
	// Concurrent trial calls in half-open state (1).
	MaxHalfOpen int

	// IsFailure filters which errors count against the backend;
	// nil counts every error.
	IsFailure func(error) bool
	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	name     string
	settings Settings

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	halfOpenRequests int

	now func() time.Time
}

// New creates a closed CircuitBreaker.
func New(name string, s Settings) *CircuitBreaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MaxHalfOpen <= 0 {
		s.MaxHalfOpen = 1
	}
	return &CircuitBreaker{
		name:     name,
		settings: s,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Execute runs fn when the circuit allows it and records the outcome.
// Rejected calls return ErrCircuitOpen or ErrTooManyRequests without
// running fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.afterRequest(err)
	return err
}

// ExecuteWithFallback runs fn; a rejected call runs fallback instead.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if IsRejected(err) {
		return fallback(err)
	}
	return err
}

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.settings.Timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.halfOpenRequests = 1
		return nil
	default:
		if cb.halfOpenRequests >= cb.settings.MaxHalfOpen {
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
		return nil
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil
	if failed && cb.settings.IsFailure != nil {
		failed = cb.settings.IsFailure(err)
	}

	if !failed {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.settings.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.successes = 0
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.settings.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// One failed trial reopens the circuit.
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.name, from, to)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ─────────────────────────────────────────────────────────────────────────────
// Presets
// ─────────────────────────────────────────────────────────────────────────────

// CacheBreaker guards the Redis snapshot cache. The cache is optional, so
// it opens quickly and the caller falls through to the store.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("snapshot-cache", Settings{
		FailureThreshold: 3,
		Timeout:          15 * time.Second,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnStateChange: onStateChange,
	})
}

// BrokerBreaker guards event publishing to the message broker.
func BrokerBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("broker", Settings{
		SuccessThreshold: 2,
		MaxHalfOpen:      2,
		OnStateChange:    onStateChange,
	})
}
