package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the protected call while the breaker
// is cooling down.
var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

type Settings struct {
	Name string
	// FailureThreshold is the number of failures inside Interval that trips
	// the breaker.
	FailureThreshold int
	// Interval is the sliding window for the failure count while closed.
	Interval time.Duration
	// Timeout is the cooldown after tripping before a trial call is let
	// through.
	Timeout time.Duration
}

type CircuitBreaker struct {
	name      string
	threshold int
	interval  time.Duration
	timeout   time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	windowStart time.Time
	openedAt    time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	threshold := settings.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CircuitBreaker{
		name:        settings.Name,
		threshold:   threshold,
		interval:    settings.Interval,
		timeout:     timeout,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Execute runs fn unless the breaker is open. A failure in half-open state
// reopens immediately; a success closes the breaker and clears the count.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.timeout {
			return fmt.Errorf("%s: %w", cb.name, ErrOpen)
		}
		cb.state = StateHalfOpen
	case StateClosed:
		if cb.interval > 0 && time.Since(cb.windowStart) > cb.interval {
			cb.failures = 0
			cb.windowStart = time.Now()
		}
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
			cb.failures = 0
		}
		return
	}

	cb.state = StateClosed
	cb.failures = 0
}
