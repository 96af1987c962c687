package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"companion-call-demo/backend/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker is short-circuiting calls
var ErrCircuitOpen = errors.New("circuit open")

// State of a circuit breaker
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name string
	// consecutive failures that open the circuit
	FailureThreshold uint
	// successes in half-open needed to close it again
	SuccessThreshold uint
	// per-call deadline applied by Execute
	Timeout time.Duration
	// how long the circuit stays open before probing
	RetryTimeout time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		RetryTimeout:     30 * time.Second,
	}
}

// Stats is a point-in-time view of a breaker
type Stats struct {
	Name          string `json:"name"`
	State         State  `json:"state"`
	Requests      uint64 `json:"requests"`
	Failures      uint64 `json:"failures"`
	Successes     uint64 `json:"successes"`
	Rejected      uint64 `json:"rejected"`
	TimesOpened   uint64 `json:"timesOpened"`
	ConsecFailure uint   `json:"consecutiveFailures"`
}

// CircuitBreaker short-circuits calls to a dependency that keeps failing
type CircuitBreaker struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint
	successes uint
	openUntil time.Time
	probing   uint
	stats     Stats
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   &logger.Logger{Logger: log.With("breaker", cfg.Name)},
		now:   time.Now,
		state: StateClosed,
	}
}

// Execute runs fn through the breaker. fn receives a context bounded by the
// configured timeout.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	parent := ctx
	if cb.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.cfg.Timeout)
		defer cancel()
	}

	started := cb.now()
	err := fn(ctx)
	if err != nil {
		// the caller giving up says nothing about the dependency
		if parent.Err() != nil {
			cb.release()
			return err
		}
		cb.recordFailure()
		cb.log.Warn("Call failed", "error", err, "duration", cb.now().Sub(started).String())
		return err
	}

	cb.recordSuccess()
	return nil
}

// State returns the current state, moving open to half-open once the retry
// timeout has passed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

// Stats returns counters for the breaker
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	s := cb.stats
	s.Name = cb.cfg.Name
	s.State = cb.state
	s.ConsecFailure = cb.failures
	return s
}

// Reset closes the circuit and clears the failure count
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toClosed()
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()
	switch cb.state {
	case StateClosed:
	case StateHalfOpen:
		// one probe per outstanding success slot
		if cb.probing+cb.successes >= cb.cfg.SuccessThreshold {
			cb.stats.Rejected++
			return false
		}
		cb.probing++
	default:
		cb.stats.Rejected++
		return false
	}
	cb.stats.Requests++
	return true
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.probing > 0 {
		cb.probing--
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Successes++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		if cb.probing > 0 {
			cb.probing--
		}
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Failures++
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == StateOpen && !cb.now().Before(cb.openUntil) {
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.probing = 0
		cb.log.Info("Circuit half-open")
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openUntil = cb.now().Add(cb.cfg.RetryTimeout)
	cb.successes = 0
	cb.probing = 0
	cb.stats.TimesOpened++
	cb.log.Warn("Circuit opened", "retry_at", cb.openUntil)
}

func (cb *CircuitBreaker) toClosed() {
	if cb.state != StateClosed {
		cb.log.Info("Circuit closed")
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.probing = 0
}
