package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds an operation by a deadline. The operation runs on its own
// goroutine so a callee that ignores ctx still cannot hold the caller past
// the deadline. Panics inside the operation are returned as ErrPanic.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op with the configured deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Call(ctx, t.config.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// Call runs fn with a deadline of d and returns its value. When the deadline
// passes first, Call returns the zero value and ErrTimeout; fn keeps running
// in the background until it observes ctx cancellation.
func Call[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: panicError(r)}
			}
			done <- out
		}()
		out.val, out.err = fn(ctx)
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}

func panicError(r any) error {
	return fmt.Errorf("%w: %v", ErrPanic, r)
}
