package actuator

import (
	"context"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/observe"
	"github.com/jonwraymond/phoenix/recovery"
)

// DryRun logs what would have been done and reports a fixed outcome.
type DryRun struct {
	Action  recovery.Action
	Outcome bool
	Logger  observe.Logger
}

// Execute logs the action.
func (d DryRun) Execute(ctx context.Context, h health.ServiceHealth) (bool, error) {
	logger := d.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	logger.Info(ctx, "dry run: recovery action skipped",
		observe.Field{Key: "service", Value: h.Name},
		observe.Field{Key: "action", Value: string(d.Action)},
		observe.Field{Key: "status", Value: h.Status.String()},
		observe.Field{Key: "reported_success", Value: d.Outcome},
	)
	return d.Outcome, nil
}

// DryRunAll binds a DryRun to every action.
func DryRunAll(outcome bool, logger observe.Logger) recovery.Actuators {
	out := make(recovery.Actuators)
	for _, a := range recovery.Actions() {
		out[a] = DryRun{Action: a, Outcome: outcome, Logger: logger}
	}
	return out
}
