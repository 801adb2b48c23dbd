package resilience

import (
	"fmt"
	"sync"
	"time"
)

type CircuitBreaker struct {
	mu               sync.Mutex
	target           string
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	consecutiveFailures int
	lastFailureTime     time.Time
	state               CircuitState
	reopenAt            time.Time
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "closed"
}

// ErrCircuitOpen is returned by Check while the breaker rejects calls.
type ErrCircuitOpen struct {
	Target   string
	ReopenAt time.Time
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("unavailable: circuit open for %s until %s", e.Target, e.ReopenAt.Format(time.RFC3339))
}

// NewCircuitBreaker returns a breaker that opens after threshold consecutive
// failures and lets a single probe call through after resetTimeout. A
// threshold of zero or less never opens.
func NewCircuitBreaker(target string, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		target:           target,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		state:            CircuitClosed,
	}
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen, CircuitHalfOpen:
		// While half-open a probe is in flight. If it never reports back,
		// another one is let through after the next reset timeout.
		if cb.now().After(cb.reopenAt) {
			cb.state = CircuitHalfOpen
			cb.reopenAt = cb.now().Add(cb.resetTimeout)
			return true
		}
		return false
	default:
		return true
	}
}

// Check is Allow expressed as an error.
func (cb *CircuitBreaker) Check() error {
	if cb.Allow() {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	return &ErrCircuitOpen{Target: cb.target, ReopenAt: cb.reopenAt}
}

func (cb *CircuitBreaker) RecordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveFailures = 0
		cb.state = CircuitClosed
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.now()

	if cb.state == CircuitHalfOpen ||
		(cb.failureThreshold > 0 && cb.consecutiveFailures >= cb.failureThreshold) {
		cb.state = CircuitOpen
		cb.reopenAt = cb.now().Add(cb.resetTimeout)
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
