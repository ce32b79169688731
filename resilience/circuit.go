package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow normally.
	StateClosed State = iota
	// StateOpen means calls are rejected without reaching the target.
	StateOpen
	// StateHalfOpen means a limited number of trial calls are let through.
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected target in state change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures before opening.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a trial call.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of trial calls allowed while half-open.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(name string, from, to State)

	// IsFailure determines if an error counts against the target.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Clock is the time source.
	// Default: the real clock
	Clock clockwork.Clock
}

// CircuitBreaker stops calling a target that keeps failing. An actuator
// backed by an unreachable orchestrator is cut off instead of being hammered
// every recovery cycle.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCount int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := op(ctx)
	cb.after(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.transitionLocked(StateClosed)
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerMetrics{
		Name:        cb.config.Name,
		State:       cb.currentLocked(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	Name        string
	State       State
	Failures    int
	LastFailure time.Time
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := cb.config.IsFailure(err)
	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		cb.lastFailure = cb.config.Clock.Now()
		if cb.failures >= cb.config.MaxFailures {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.lastFailure = cb.config.Clock.Now()
			cb.transitionLocked(StateOpen)
			return
		}
		cb.failures = 0
		cb.transitionLocked(StateClosed)
	}
}

func (cb *CircuitBreaker) currentLocked() State {
	if cb.state == StateOpen && cb.config.Clock.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateHalfOpen {
		cb.halfOpenCount = 0
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// BreakerSet hands out one circuit breaker per target name, created lazily
// from a shared template config.
type BreakerSet struct {
	template CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet creates a keyed breaker set.
func NewBreakerSet(template CircuitBreakerConfig) *BreakerSet {
	return &BreakerSet{template: template, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for name, creating it on first use.
func (s *BreakerSet) Get(name string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[name]
	if !ok {
		cfg := s.template
		cfg.Name = name
		cb = NewCircuitBreaker(cfg)
		s.breakers[name] = cb
	}
	return cb
}

// Snapshot returns metrics for every breaker created so far.
func (s *BreakerSet) Snapshot() []CircuitBreakerMetrics {
	s.mu.Lock()
	list := make([]*CircuitBreaker, 0, len(s.breakers))
	for _, cb := range s.breakers {
		list = append(list, cb)
	}
	s.mu.Unlock()

	out := make([]CircuitBreakerMetrics, 0, len(list))
	for _, cb := range list {
		out = append(out, cb.Metrics())
	}
	return out
}
