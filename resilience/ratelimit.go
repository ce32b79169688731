package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of tokens added per second.
	// Default: 1
	Rate float64

	// Burst is the bucket capacity.
	// Default: 5
	Burst int

	// Clock is the time source.
	// Default: the real clock
	Clock clockwork.Clock
}

// RateLimiter is a token bucket. The recovery driver draws one token per
// attempt so a flapping fleet cannot trigger a recovery storm.
type RateLimiter struct {
	config RateLimiterConfig

	mu          sync.Mutex
	tokens      float64
	lastRefresh time.Time
}

// NewRateLimiter creates a new rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		config:      config,
		tokens:      float64(config.Burst),
		lastRefresh: config.Clock.Now(),
	}
}

// Allow takes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN takes n tokens if available.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}
	return false
}

// Execute runs op if a token is available and returns ErrRateLimited otherwise.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if !rl.Allow() {
		return ErrRateLimited
	}
	return op(ctx)
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

func (rl *RateLimiter) refillLocked() {
	now := rl.config.Clock.Now()
	elapsed := now.Sub(rl.lastRefresh)
	rl.lastRefresh = now

	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}
