// Package resilience bounds and protects the blocking operations of the
// control loop: health probes and recovery actuator calls.
//
// # Patterns
//
//   - Timeout and Call: bound an operation by a deadline and convert panics
//     into ErrPanic. A probe that ignores its context still returns on time.
//
//   - Retry: re-run a failing remote call with exponential backoff.
//
//   - CircuitBreaker and BreakerSet: stop calling an actuator target that keeps
//     failing, one breaker per target.
//
//   - Bulkhead: cap the number of recovery actions in flight.
//
//   - RateLimiter: token bucket that damps recovery storms.
//
// Guard composes breaker, retry and timeout for actuator calls:
//
//	guard := resilience.NewGuard(
//	    resilience.WithBreakers(resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
//	        MaxFailures:  3,
//	        ResetTimeout: time.Minute,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := guard.Execute(ctx, "payments/restart", func(ctx context.Context) error {
//	    return restartDeployment(ctx)
//	})
package resilience
