package actuator

import (
	"context"
	"errors"

	"github.com/jonwraymond/phoenix/health"
	"github.com/jonwraymond/phoenix/recovery"
	"github.com/jonwraymond/phoenix/resilience"
)

// RetryIf is the retry predicate for remote actuators: rejections and
// missing targets are final, everything else follows resilience.Retryable.
func RetryIf(err error) bool {
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrAtCapacity) || errors.Is(err, ErrNoPreviousRevision) {
		return false
	}
	return resilience.Retryable(err)
}

// Guarded runs a through g. Each action and service pair gets its own
// circuit breaker, so one broken deployment does not block the others.
func Guarded(g *resilience.Guard, action recovery.Action, a recovery.Actuator) recovery.Actuator {
	return recovery.ActuatorFunc(func(ctx context.Context, h health.ServiceHealth) (bool, error) {
		var ok bool
		err := g.Execute(ctx, string(action)+":"+h.Name, func(ctx context.Context) error {
			var err error
			ok, err = a.Execute(ctx, h)
			return err
		})
		if err != nil {
			return false, err
		}
		return ok, nil
	})
}

// GuardAll wraps every actuator in set with g.
func GuardAll(g *resilience.Guard, set recovery.Actuators) recovery.Actuators {
	out := make(recovery.Actuators, len(set))
	for action, a := range set {
		out[action] = Guarded(g, action, a)
	}
	return out
}

// Merge combines actuator sets. Later sets win.
func Merge(sets ...recovery.Actuators) recovery.Actuators {
	out := make(recovery.Actuators)
	for _, set := range sets {
		for action, a := range set {
			out[action] = a
		}
	}
	return out
}
