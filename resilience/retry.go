package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures retries of remote recovery calls.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 200ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 5s
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts.
	// Default: 2.0
	Multiplier float64

	// Jitter is the randomization factor applied to each delay, in [0,1].
	// Default: 0 (deterministic delays)
	Jitter float64

	// RetryIf reports whether err is worth another attempt.
	// Default: every error except ErrCircuitOpen and context errors.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs a failing operation with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = 0
	}
	if config.RetryIf == nil {
		config.RetryIf = Retryable
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, err, delay)
			}
		}),
	)
	return err
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func (r *Retry) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.MaxInterval = r.config.MaxDelay
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = r.config.Jitter
	return b
}

// Retryable is the default RetryIf: every error except ErrCircuitOpen and
// context errors.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCircuitOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
