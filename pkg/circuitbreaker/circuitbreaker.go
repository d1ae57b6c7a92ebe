// Package circuitbreaker sheds load from a failing dependency. The
// session registry sits behind one so a dead redis degrades to fast
// local failures instead of every session write eating the full retry
// backoff.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the wrapped call while the
// breaker is shedding.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker position.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail immediately
	StateHalfOpen              // a bounded number of trial calls pass
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MaxRequestsHalfOpen bounds concurrent trial calls while half-open.
	MaxRequestsHalfOpen int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

// Stats is a point-in-time snapshot of the breaker.
type Stats struct {
	State            State
	FailureCount     int
	SuccessCount     int
	HalfOpenRequests int
	LastFailureTime  time.Time
	StateChangeTime  time.Time
}

// CircuitBreaker tracks consecutive outcomes of a guarded call and
// sheds further calls once the dependency looks down.
type CircuitBreaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	trials    int
	lastFail  time.Time
	changedAt time.Time

	onStateChange func(from, to State)
}

func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, changedAt: time.Now()}
}

// OnStateChange registers a transition callback. It runs on its own
// goroutine so a slow observer cannot hold the breaker lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

// Execute runs fn through the breaker. While open it returns ErrOpen
// without calling fn; failures from fn are returned wrapped.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.admit() {
		return fmt.Errorf("%w (state %s)", ErrOpen, cb.snapshot().State)
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return fmt.Errorf("guarded call failed: %w", err)
	}
	cb.recordSuccess()
	return nil
}

// Stats returns a snapshot of the breaker counters for the health
// surface.
func (cb *CircuitBreaker) Stats() Stats {
	return cb.snapshot()
}

func (cb *CircuitBreaker) snapshot() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:            cb.state,
		FailureCount:     cb.failures,
		SuccessCount:     cb.successes,
		HalfOpenRequests: cb.trials,
		LastFailureTime:  cb.lastFail,
		StateChangeTime:  cb.changedAt,
	}
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.changedAt) < cb.cfg.Timeout {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.trials = 1
		return true

	case StateHalfOpen:
		if cb.trials >= cb.cfg.MaxRequestsHalfOpen {
			return false
		}
		cb.trials++
		return true
	}
	return true
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.successes = 0
	cb.lastFail = time.Now()

	switch {
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.transition(StateOpen)
	case cb.state == StateHalfOpen:
		// A failed trial call reopens immediately.
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes++

	if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

// transition flips the state. Caller holds cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.changedAt = time.Now()
	cb.failures = 0
	cb.successes = 0
	if to != StateHalfOpen {
		cb.trials = 0
	}
	if cb.onStateChange != nil {
		go cb.onStateChange(from, to)
	}
}
