package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/resilience"
)

// Source supplies the snapshots the driver acts on. *health.Monitor
// satisfies it.
type Source interface {
	UnhealthyServices() []health.ServiceHealth
}

// DriverConfig configures the recovery driver.
type DriverConfig struct {
	// Interval is the time between recovery cycles.
	// Default: 60 seconds
	Interval time.Duration

	// MaxConcurrent caps the number of attempts running at once.
	// Default: 10
	MaxConcurrent int

	// Limiter, when set, draws one token per attempt. Services skipped for
	// lack of a token are retried on the next cycle.
	Limiter *resilience.RateLimiter

	// Clock drives the cycle ticker.
	// Default: the real clock
	Clock clockwork.Clock

	Logger observe.Logger
}

// Driver is the outer control loop: every Interval it reads the unhealthy
// services and attempts recovery for each of them concurrently.
type Driver struct {
	config   DriverConfig
	source   Source
	engine   *Engine
	bulkhead *resilience.Bulkhead

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewDriver creates a driver reading from source and acting through engine.
func NewDriver(source Source, engine *Engine, config DriverConfig) *Driver {
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	config.Logger = config.Logger.With(observe.Field{Key: "component", Value: "recovery-driver"})

	return &Driver{
		config:   config,
		source:   source,
		engine:   engine,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: config.MaxConcurrent}),
	}
}

// Config returns the effective configuration.
func (d *Driver) Config() DriverConfig {
	return d.config
}

// Start begins the loop. The first cycle runs after one Interval so the
// monitor has a chance to observe the fleet. Starting a running driver is a
// logged no-op.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.runningLocked() {
		d.config.Logger.Info(ctx, "recovery driver already running")
		return nil
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(ctx, d.stop, d.done)

	d.config.Logger.Info(ctx, "recovery driver started",
		observe.Field{Key: "interval", Value: d.config.Interval.String()},
		observe.Field{Key: "max_concurrent", Value: d.config.MaxConcurrent},
	)
	return nil
}

// Stop prevents further cycles and waits for in-flight attempts to finish
// or ctx to end.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
	default:
		close(stop)
	}

	select {
	case <-done:
		d.config.Logger.Info(ctx, "recovery driver stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runningLocked()
}

func (d *Driver) runningLocked() bool {
	if d.done == nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

func (d *Driver) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := d.config.Clock.NewTicker(d.config.Interval)
	defer ticker.Stop()

	cycleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			d.RunOnce(cycleCtx)
		}
	}
}

// RunOnce runs one recovery cycle and returns the incidents it produced, in
// the order the unhealthy services were reported.
func (d *Driver) RunOnce(ctx context.Context) []incident.Incident {
	unhealthy := d.source.UnhealthyServices()
	if len(unhealthy) == 0 {
		return nil
	}

	admitted := make([]health.ServiceHealth, 0, len(unhealthy))
	for _, h := range unhealthy {
		if d.config.Limiter != nil && !d.config.Limiter.Allow() {
			d.config.Logger.Warn(ctx, "recovery rate limited, retrying next cycle",
				observe.Field{Key: "service", Value: h.Name},
				observe.Field{Key: "status", Value: h.Status.String()},
			)
			continue
		}
		admitted = append(admitted, h)
	}

	results := make([]incident.Incident, len(admitted))
	var g errgroup.Group
	for i, h := range admitted {
		g.Go(func() error {
			return d.bulkhead.Execute(ctx, func(ctx context.Context) error {
				results[i] = d.engine.AttemptRecovery(ctx, h)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		d.config.Logger.Error(ctx, "recovery cycle incomplete", observe.Err(err))
	}

	out := results[:0]
	for _, inc := range results {
		if inc.ID != "" {
			out = append(out, inc)
		}
	}
	d.config.Logger.Debug(ctx, "recovery cycle completed",
		observe.Field{Key: "unhealthy", Value: len(unhealthy)},
		observe.Field{Key: "attempted", Value: len(out)},
	)
	return out
}
