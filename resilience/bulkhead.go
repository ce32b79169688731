package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of operations in flight.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a slot.
	// Default: 0 (wait until ctx is done)
	MaxWait time.Duration
}

// Bulkhead caps how many recovery actions run at once so a fleet-wide outage
// cannot launch an unbounded number of actuator calls.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	maxActive atomic.Int64
	rejected  atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot, waiting up to MaxWait (or until ctx is done when
// MaxWait is zero).
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.noteActive()
		return nil
	default:
	}

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		b.noteActive()
		return nil
	case <-timeout:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
	default:
	}
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := len(b.sem)
	return BulkheadMetrics{
		Active:        active,
		MaxActive:     int(b.maxActive.Load()),
		Available:     b.config.MaxConcurrent - active,
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected.Load(),
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}

func (b *Bulkhead) noteActive() {
	n := int64(len(b.sem))
	for {
		cur := b.maxActive.Load()
		if n <= cur || b.maxActive.CompareAndSwap(cur, n) {
			return
		}
	}
}
