package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/incident"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/resilience"
)

// NoStrategyDetails is recorded when no strategy applies to a snapshot.
const NoStrategyDetails = "No applicable recovery strategy"

// EngineConfig configures the recovery engine.
type EngineConfig struct {
	// Catalog is the strategy set.
	// Default: DefaultCatalog with no actuators bound
	Catalog *Catalog

	// ActionTimeout bounds each actuator call.
	// Default: 30 seconds
	ActionTimeout time.Duration

	// Ledger receives every incident.
	// Default: an in-memory ledger
	Ledger incident.Ledger

	// Notifier is told about every incident after it is recorded.
	Notifier incident.Notifier

	// Clock stamps DetectedAt and measures RecoveryTimeMs.
	// Default: the real clock
	Clock clockwork.Clock

	Logger     observe.Logger
	Metrics    observe.Metrics
	Middleware *observe.Middleware
}

// Engine selects and runs one recovery action per attempt and records the
// outcome. It never probes; it acts on the snapshot it is given.
type Engine struct {
	config   EngineConfig
	inflight singleflight.Group
	locks    sync.Map // service name -> *sync.Mutex
}

// NewEngine creates an engine.
func NewEngine(config EngineConfig) *Engine {
	if config.Catalog == nil {
		config.Catalog = DefaultCatalog(nil)
	}
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = 30 * time.Second
	}
	if config.Ledger == nil {
		config.Ledger = incident.NewMemoryLedger()
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
	config.Logger = config.Logger.With(observe.Field{Key: "component", Value: "recovery-engine"})

	return &Engine{config: config}
}

// Catalog returns the active strategy set.
func (e *Engine) Catalog() *Catalog {
	return e.config.Catalog
}

// Ledger returns the incident ledger.
func (e *Engine) Ledger() incident.Ledger {
	return e.config.Ledger
}

// Incidents returns the recorded history in completion order.
func (e *Engine) Incidents(ctx context.Context) ([]incident.Incident, error) {
	return e.config.Ledger.All(ctx)
}

// Stats derives effectiveness statistics from the ledger.
func (e *Engine) Stats(ctx context.Context) (incident.Stats, error) {
	all, err := e.config.Ledger.All(ctx)
	if err != nil {
		return incident.Stats{}, err
	}
	return incident.ComputeStats(all), nil
}

// AttemptRecovery picks the first applicable strategy for h, runs it and
// returns the recorded incident. It never returns an error: actuator errors,
// timeouts and panics become unsuccessful incidents.
//
// Concurrent calls for the same service share one execution and receive the
// same incident. Calls for distinct services run independently. The shared
// execution outlives any single caller's ctx; ActionTimeout bounds it.
func (e *Engine) AttemptRecovery(ctx context.Context, h health.ServiceHealth) incident.Incident {
	v, _, shared := e.inflight.Do(h.Name, func() (any, error) {
		return e.serialized(ctx, h.Name, func(ctx context.Context) incident.Incident {
			return e.attempt(ctx, h)
		}), nil
	})
	if shared {
		e.config.Logger.Debug(ctx, "joined in-flight recovery", observe.Field{Key: "service", Value: h.Name})
	}
	return v.(incident.Incident)
}

// AttemptStrategy runs the catalog strategy named by name on h without
// evaluating its condition. name matches a strategy name or, failing that,
// the first strategy bound to that action. The attempt waits for any
// in-flight attempt on the same service and is recorded like any other.
func (e *Engine) AttemptStrategy(ctx context.Context, h health.ServiceHealth, name string) (incident.Incident, error) {
	strategy, ok := e.config.Catalog.Lookup(name)
	if !ok {
		return incident.Incident{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return e.serialized(ctx, h.Name, func(ctx context.Context) incident.Incident {
		return e.run(ctx, h, strategy, e.config.Clock.Now())
	}), nil
}

// serialized runs fn while holding the lock for service, under a context
// that ignores the caller's cancellation.
func (e *Engine) serialized(ctx context.Context, service string, fn func(context.Context) incident.Incident) incident.Incident {
	v, _ := e.locks.LoadOrStore(service, new(sync.Mutex))
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(context.WithoutCancel(ctx))
}

func (e *Engine) attempt(ctx context.Context, h health.ServiceHealth) incident.Incident {
	detected := e.config.Clock.Now()

	strategy, ok := e.config.Catalog.Select(h)
	if !ok {
		inc := incident.New(h, string(ActionAlertTeam), detected)
		inc.Details = NoStrategyDetails
		e.config.Logger.Warn(ctx, "no applicable recovery strategy",
			observe.Field{Key: "service", Value: h.Name},
			observe.Field{Key: "status", Value: h.Status.String()},
			observe.Field{Key: "uptime_score", Value: h.UptimeScore},
			observe.Field{Key: "error_rate", Value: h.ErrorRate},
		)
		e.record(ctx, inc)
		return inc
	}
	return e.run(ctx, h, strategy, detected)
}

func (e *Engine) run(ctx context.Context, h health.ServiceHealth, strategy Strategy, detected time.Time) incident.Incident {
	inc := incident.New(h, string(strategy.Action), detected)

	var (
		success bool
		elapsed time.Duration
	)
	op := observe.Operation{Kind: "recovery", Service: h.Name, Action: string(strategy.Action)}
	err := e.config.Middleware.Run(ctx, op, func(ctx context.Context) error {
		start := e.config.Clock.Now()
		var err error
		success, err = e.execute(ctx, strategy, h)
		elapsed = e.config.Clock.Since(start)
		return err
	})

	inc.Success = err == nil && success
	inc.RecoveryTimeMs = elapsed.Milliseconds()
	inc.Details = details(strategy, success, err, e.config.ActionTimeout)

	e.config.Metrics.RecordRecovery(ctx, h.Name, string(strategy.Action), inc.Success, elapsed)
	e.record(ctx, inc)
	return inc
}

func (e *Engine) execute(ctx context.Context, s Strategy, h health.ServiceHealth) (bool, error) {
	actuator := s.Actuator
	if actuator == nil {
		actuator = unbound(s.Action)
	}
	return resilience.Call(ctx, e.config.ActionTimeout, func(ctx context.Context) (bool, error) {
		return actuator.Execute(ctx, h.Clone())
	})
}

func details(s Strategy, success bool, err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, resilience.ErrTimeout):
		return fmt.Sprintf("%s: action timed out after %s", s.Name, timeout)
	case err != nil:
		return fmt.Sprintf("%s: %v", s.Name, err)
	case success:
		return fmt.Sprintf("%s: %s completed", s.Name, s.Action)
	default:
		return fmt.Sprintf("%s: %s reported failure", s.Name, s.Action)
	}
}

// record appends inc and notifies listeners. Failures here are logged; the
// attempt itself has already happened. ctx is never cancelled here.
func (e *Engine) record(ctx context.Context, inc incident.Incident) {
	fields := []observe.Field{
		{Key: "incident_id", Value: inc.ID},
		{Key: "service", Value: inc.Service},
		{Key: "action", Value: inc.Action},
		{Key: "success", Value: inc.Success},
		{Key: "recovery_time_ms", Value: inc.RecoveryTimeMs},
	}

	if err := e.config.Ledger.Append(ctx, inc); err != nil {
		e.config.Logger.Error(ctx, "incident append failed", append(fields, observe.Err(err))...)
	}
	if e.config.Notifier != nil {
		if err := e.config.Notifier.Notify(ctx, inc); err != nil {
			e.config.Logger.Warn(ctx, "incident notification failed", append(fields, observe.Err(err))...)
		}
	}

	if inc.Success {
		e.config.Logger.Info(ctx, "recovery succeeded", append(fields, observe.Field{Key: "details", Value: inc.Details})...)
	} else {
		e.config.Logger.Warn(ctx, "recovery failed", append(fields, observe.Field{Key: "details", Value: inc.Details})...)
	}
}
