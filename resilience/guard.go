package resilience

import (
	"context"
	"time"
)

// Guard wraps calls to remote recovery targets. Each target gets its own
// circuit breaker; inside the breaker the call is retried and every attempt
// is bounded by the timeout.
//
// Order from the outside in: breaker, retry, timeout.
type Guard struct {
	breakers *BreakerSet
	retry    *Retry
	timeout  *Timeout
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// NewGuard creates a guard. With no options it only recovers panics.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithBreakers adds per-target circuit breakers.
func WithBreakers(set *BreakerSet) GuardOption {
	return func(g *Guard) {
		g.breakers = set
	}
}

// WithRetry adds retry with backoff.
func WithRetry(r *Retry) GuardOption {
	return func(g *Guard) {
		g.retry = r
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.timeout = NewTimeout(TimeoutConfig{Timeout: d})
	}
}

// Execute runs op for target through the configured patterns.
func (g *Guard) Execute(ctx context.Context, target string, op func(context.Context) error) error {
	execute := op

	if g.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.timeout.Execute(ctx, inner)
		}
	} else {
		inner := execute
		execute = func(ctx context.Context) error {
			return safely(ctx, inner)
		}
	}

	if g.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.retry.Execute(ctx, inner)
		}
	}

	if g.breakers != nil {
		inner := execute
		cb := g.breakers.Get(target)
		execute = func(ctx context.Context) error {
			return cb.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Breakers returns the breaker set, or nil.
func (g *Guard) Breakers() *BreakerSet {
	return g.breakers
}

func safely(ctx context.Context, op func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return op(ctx)
}
