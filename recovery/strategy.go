package recovery

import (
	"context"
	"fmt"

	"github.com/jonwraymond/phoenix/health"
)

// Actuator carries out a recovery action against real infrastructure.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations should honor cancellation; the engine also
// bounds every call with its action timeout.
// - Errors: a returned error is recorded as an unsuccessful attempt.
type Actuator interface {
	Execute(ctx context.Context, h health.ServiceHealth) (bool, error)
}

// ActuatorFunc adapts a function to Actuator.
type ActuatorFunc func(ctx context.Context, h health.ServiceHealth) (bool, error)

// Execute calls f.
func (f ActuatorFunc) Execute(ctx context.Context, h health.ServiceHealth) (bool, error) {
	return f(ctx, h)
}

// Condition decides whether a strategy applies to a health snapshot. It must
// be pure.
type Condition func(h health.ServiceHealth) bool

// Strategy is one catalog entry: when Condition holds, run Actuator.
type Strategy struct {
	Name        string
	Description string
	Action      Action
	Priority    int
	Condition   Condition
	Actuator    Actuator
}

// Validate checks the action and condition. A nil Actuator is allowed and
// fails at execution time with ErrNoActuator.
func (s Strategy) Validate() error {
	if !s.Action.Valid() {
		return fmt.Errorf("%w: %q: %w", ErrInvalidStrategy, s.Name, ErrUnknownAction)
	}
	if s.Condition == nil {
		return fmt.Errorf("%w: %q has no condition", ErrInvalidStrategy, s.Name)
	}
	return nil
}

// Actuators binds actions to actuators.
type Actuators map[Action]Actuator

// For returns the actuator bound to a, or one that always fails with
// ErrNoActuator.
func (as Actuators) For(a Action) Actuator {
	if act, ok := as[a]; ok && act != nil {
		return act
	}
	return unbound(a)
}

func unbound(a Action) Actuator {
	return ActuatorFunc(func(context.Context, health.ServiceHealth) (bool, error) {
		return false, fmt.Errorf("%w: %s", ErrNoActuator, a)
	})
}
