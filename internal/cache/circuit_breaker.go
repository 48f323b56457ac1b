package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type CircuitBreakerConfig struct {
	MaxFailures int           `json:"max_failures"`
	Cooldown    time.Duration `json:"cooldown"`

	// Successful trial calls needed in half-open before the breaker closes.
	HalfOpenSuccesses int `json:"half_open_successes"`
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:       5,
		Cooldown:          30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// CircuitBreaker stops calling a failing backend for a cooldown period.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    BreakerState
	failures int
	trials   int
	openedAt time.Time
	now      func() time.Time
	cfg      CircuitBreakerConfig
	onChange func(from, to BreakerState)
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	cfg := *config
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = 1
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers a callback invoked outside the lock on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	if cb.state == BreakerOpen {
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		notify := cb.transition(BreakerHalfOpen)
		cb.mu.Unlock()
		notify()
		return nil
	}
	cb.mu.Unlock()
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	notify := func() {}

	switch {
	case err != nil && cb.state == BreakerHalfOpen:
		notify = cb.transition(BreakerOpen)
	case err != nil:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			notify = cb.transition(BreakerOpen)
		}
	case cb.state == BreakerHalfOpen:
		cb.trials++
		if cb.trials >= cb.cfg.HalfOpenSuccesses {
			notify = cb.transition(BreakerClosed)
		}
	default:
		cb.failures = 0
	}

	cb.mu.Unlock()
	notify()
}

// transition must be called with mu held. It returns the notification to run
// once the lock is released.
func (cb *CircuitBreaker) transition(to BreakerState) func() {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.trials = 0
	if to == BreakerOpen {
		cb.openedAt = cb.now()
	}

	fn := cb.onChange
	if fn == nil || from == to {
		return func() {}
	}
	return func() { fn(from, to) }
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"state":            cb.state.String(),
		"failure_count":    cb.failures,
		"trial_successes":  cb.trials,
		"max_failures":     cb.cfg.MaxFailures,
		"cooldown_seconds": cb.cfg.Cooldown.Seconds(),
	}
}
