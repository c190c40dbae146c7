// Package resilience provides the failure-window circuit breaker that guards
// provider calls and the retry helpers used by callers and alert delivery.
package resilience

import (
	"sync"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitNormal lets requests through.
	CircuitNormal CircuitState = iota
	// CircuitTripped rejects requests until a success is recorded.
	CircuitTripped
)

func (s CircuitState) String() string {
	switch s {
	case CircuitNormal:
		return "normal"
	case CircuitTripped:
		return "tripped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state as its string form.
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrCircuitOpen is returned when a call is rejected because the breaker is tripped.
var ErrCircuitOpen = eris.New("circuit breaker is tripped")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Window is the number of most recent outcomes that must all be failures
	// to trip the breaker. Default: 5.
	Window int

	// OnStateChange is called when the breaker transitions between states.
	// It runs with the breaker's lock held and must not call back into it.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default window of 5.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Window: 5}
}

// CircuitBreaker trips once the last Window recorded outcomes are all
// failures and stays tripped until the next recorded success. There is no
// timed recovery.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures int
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 5
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: CircuitNormal,
	}
}

// Window returns the configured failure window.
func (cb *CircuitBreaker) Window() int { return cb.cfg.Window }

// Allow returns ErrCircuitOpen while the breaker is tripped.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitTripped {
		return ErrCircuitOpen
	}
	return nil
}

// Record registers one outcome.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		cb.consecutiveFailures = 0
		if cb.state == CircuitTripped {
			cb.transition(CircuitNormal)
		}
		return
	}

	cb.consecutiveFailures++
	if cb.state == CircuitNormal && cb.consecutiveFailures >= cb.cfg.Window {
		cb.transition(CircuitTripped)
	}
}

// Restore seeds the breaker from a persisted run of trailing failures. It
// does not fire OnStateChange.
func (cb *CircuitBreaker) Restore(trailingFailures int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = max(trailingFailures, 0)
	if cb.consecutiveFailures >= cb.cfg.Window {
		cb.state = CircuitTripped
	} else {
		cb.state = CircuitNormal
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counters returns the current failure count and state for observability.
func (cb *CircuitBreaker) Counters() (consecutiveFailures int, state CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures, cb.state
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
