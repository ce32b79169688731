package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/resilience"
)

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	// Interval is the time between health cycles.
	// Default: 30 seconds
	Interval time.Duration

	// ProbeTimeout bounds each probe.
	// Default: 5 seconds
	ProbeTimeout time.Duration

	// FailureThreshold is the number of consecutive failed probes needed
	// before the status leaves healthy.
	// Default: 1
	FailureThreshold int

	// MaxConcurrentProbes caps the per-cycle fan-out.
	// Default: 0 (one goroutine per service)
	MaxConcurrentProbes int

	// Prober performs probes.
	// Default: DefaultProber()
	Prober Prober

	// Clock drives the polling ticker and probe timestamps.
	// Default: the real clock
	Clock clockwork.Clock

	// Store persists every record after it changes. Restore reads it back.
	// Default: nil (records live in memory only)
	Store StateStore

	Logger     observe.Logger
	Metrics    observe.Metrics
	Middleware *observe.Middleware

	// OnTransition is called after a probe changes a service's status.
	OnTransition func(ctx context.Context, prev, next ServiceHealth)
}

// CheckResult is the outcome of one explicit probe.
type CheckResult struct {
	Service        string    `json:"service"`
	Healthy        bool      `json:"healthy"`
	Status         Status    `json:"status"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Monitor polls every registered service and keeps its health record
// current. Probe failures are folded into the records and never surface as
// errors from the polling loop.
type Monitor struct {
	config   MonitorConfig
	registry *Registry
	history  *history

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a monitor. Call Register and then Start.
func NewMonitor(config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.Prober == nil {
		config.Prober = DefaultProber()
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}
	if config.Middleware == nil {
		config.Middleware = observe.NewMiddleware(nil, config.Logger)
	}
	config.Logger = config.Logger.With(observe.Field{Key: "component", Value: "health-monitor"})

	return &Monitor{config: config, registry: NewRegistry(), history: newHistory()}
}

// Config returns the effective configuration.
func (m *Monitor) Config() MonitorConfig {
	return m.config
}

// Register adds a service with an initial healthy record.
func (m *Monitor) Register(reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	if s, ok := m.config.Prober.(interface{ Supports(string) bool }); ok && !s.Supports(reg.Endpoint) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidService, ErrUnsupportedScheme, reg.Endpoint)
	}
	if err := m.registry.Add(reg); err != nil {
		return err
	}
	m.config.Logger.Info(context.Background(), "service registered",
		observe.Field{Key: "service", Value: reg.Name},
		observe.Field{Key: "endpoint", Value: reg.Endpoint},
	)
	return nil
}

// Start begins periodic polling. The first cycle runs immediately. Starting
// a running monitor is a logged no-op. Cancelling ctx also ends the loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runningLocked() {
		m.config.Logger.Info(ctx, "health monitor already running")
		return nil
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(ctx, m.stop, m.done)

	m.config.Logger.Info(ctx, "health monitor started",
		observe.Field{Key: "interval", Value: m.config.Interval.String()},
		observe.Field{Key: "services", Value: m.registry.Len()},
	)
	return nil
}

// Stop prevents further cycles and waits for the in-flight cycle to finish
// or ctx to end. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

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
		m.config.Logger.Info(ctx, "health monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningLocked()
}

func (m *Monitor) runningLocked() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Monitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := m.config.Clock.NewTicker(m.config.Interval)
	defer ticker.Stop()

	// Probes must not be cut short by Stop or by ctx cancellation; each one
	// is bounded by ProbeTimeout instead.
	cycleCtx := context.WithoutCancel(ctx)

	m.CheckAll(cycleCtx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.CheckAll(cycleCtx)
		}
	}
}

// CheckAll runs one health cycle over every registered service concurrently
// and returns the per-service results in registration order.
func (m *Monitor) CheckAll(ctx context.Context) []CheckResult {
	names := m.registry.Names()
	results := make([]CheckResult, len(names))

	var g errgroup.Group
	if m.config.MaxConcurrentProbes > 0 {
		g.SetLimit(m.config.MaxConcurrentProbes)
	}
	for i, name := range names {
		g.Go(func() error {
			res, err := m.CheckService(ctx, name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.config.Logger.Error(ctx, "health cycle incomplete", observe.Err(err))
	}
	return results
}

// CheckService probes one service, folds the result into its record and
// returns the probe outcome. It returns within ProbeTimeout even when the
// prober ignores its context.
func (m *Monitor) CheckService(ctx context.Context, name string) (CheckResult, error) {
	h, err := m.registry.Get(name)
	if err != nil {
		return CheckResult{}, err
	}

	var res ProbeResult
	_ = m.config.Middleware.Run(ctx, observe.Operation{Kind: "probe", Service: name}, func(ctx context.Context) error {
		res = m.probe(ctx, h.Endpoint)
		return res.Err
	})

	now := m.config.Clock.Now()
	prev, next, err := m.registry.Update(name, func(cur ServiceHealth) ServiceHealth {
		return cur.Apply(res, now, m.config.FailureThreshold)
	})
	if err != nil {
		return CheckResult{}, err
	}

	m.history.record(name, now, res)
	m.persist(ctx, next)
	m.config.Metrics.RecordProbe(ctx, name, next.Status.String(), res.ResponseTime)
	if prev.Status != next.Status {
		m.transition(ctx, prev, next)
	}

	out := CheckResult{
		Service:        name,
		Healthy:        res.Outcome == OutcomeSuccess,
		Status:         next.Status,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
		Timestamp:      now,
	}
	if !out.Healthy {
		out.Error = res.errorText()
	}
	return out, nil
}

func (m *Monitor) probe(ctx context.Context, endpoint string) ProbeResult {
	start := time.Now()
	res, err := resilience.Call(ctx, m.config.ProbeTimeout, func(ctx context.Context) (ProbeResult, error) {
		return m.config.Prober.Probe(ctx, endpoint), nil
	})
	switch {
	case errors.Is(err, resilience.ErrTimeout):
		return Unreachable(time.Since(start), fmt.Errorf("probe timed out after %s", m.config.ProbeTimeout))
	case err != nil:
		return Unreachable(time.Since(start), err)
	}
	return res
}

func (m *Monitor) persist(ctx context.Context, h ServiceHealth) {
	if m.config.Store == nil {
		return
	}
	if err := m.config.Store.Save(context.WithoutCancel(ctx), h); err != nil {
		m.config.Logger.Warn(ctx, "health state persist failed",
			observe.Field{Key: "service", Value: h.Name}, observe.Err(err))
	}
}

// Restore loads persisted records into the registered services and returns
// how many were restored. Identity fields stay as registered; stored records
// for services that are not registered are ignored. Call it after Register
// and before Start.
func (m *Monitor) Restore(ctx context.Context) (int, error) {
	if m.config.Store == nil {
		return 0, nil
	}
	saved, err := m.config.Store.Load(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, s := range saved {
		_, _, err := m.registry.Update(s.Name, func(cur ServiceHealth) ServiceHealth {
			cur.Status = s.Status
			cur.LastCheckedAt = s.LastCheckedAt
			cur.ResponseTimeMs = s.ResponseTimeMs
			cur.ErrorRate = clamp(s.ErrorRate)
			cur.UptimeScore = clamp(s.UptimeScore)
			cur.ConsecutiveFailures = s.ConsecutiveFailures
			cur.LastError = s.LastError
			return cur
		})
		if errors.Is(err, ErrUnknownService) {
			continue
		}
		restored++
	}
	m.config.Logger.Info(ctx, "health state restored",
		observe.Field{Key: "restored", Value: restored},
		observe.Field{Key: "stored", Value: len(saved)},
	)
	return restored, nil
}

func (m *Monitor) transition(ctx context.Context, prev, next ServiceHealth) {
	fields := []observe.Field{
		{Key: "service", Value: next.Name},
		{Key: "from", Value: prev.Status.String()},
		{Key: "to", Value: next.Status.String()},
		{Key: "uptime_score", Value: next.UptimeScore},
		{Key: "error_rate", Value: next.ErrorRate},
	}
	if next.Healthy() {
		m.config.Logger.Info(ctx, "service recovered", fields...)
	} else {
		m.config.Logger.Warn(ctx, "service unhealthy", append(fields, observe.Field{Key: "last_error", Value: next.LastError})...)
	}
	if m.config.OnTransition != nil {
		m.config.OnTransition(ctx, prev, next)
	}
}

// AllHealth returns a snapshot of every record in registration order.
func (m *Monitor) AllHealth() []ServiceHealth {
	return m.registry.All()
}

// ServiceHealth returns a snapshot of the named record.
func (m *Monitor) ServiceHealth(name string) (ServiceHealth, error) {
	return m.registry.Get(name)
}

// UnhealthyServices returns every record whose status is not healthy.
func (m *Monitor) UnhealthyServices() []ServiceHealth {
	return m.registry.Unhealthy()
}

// Summary rolls the current records up into one fleet status.
func (m *Monitor) Summary() Summary {
	return Summarize(m.registry.All())
}

// Trends returns the probe history of the named service over the last
// window, measured from the monitor's clock.
func (m *Monitor) Trends(name string, window time.Duration) (Trends, error) {
	if _, err := m.registry.Get(name); err != nil {
		return Trends{}, err
	}
	responses, errs := m.history.since(name, m.config.Clock.Now().Add(-window))
	return Trends{
		Service:       name,
		Window:        window.String(),
		ResponseTimes: responses,
		Errors:        errs,
	}, nil
}
