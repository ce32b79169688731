package resilience

import "errors"

// Sentinel errors for guarded probe and recovery operations.
var (
	// ErrCircuitOpen is returned when a target's circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimited is returned when the token bucket has no capacity left.
	ErrRateLimited = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when no concurrency slot is free.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrPanic wraps a value recovered from a panicking operation.
	ErrPanic = errors.New("resilience: operation panicked")
)
