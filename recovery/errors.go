package recovery

import "errors"

var (
	// ErrUnknownAction indicates an action name outside the known set.
	ErrUnknownAction = errors.New("recovery: unknown action")

	// ErrInvalidStrategy indicates a strategy without a condition or with an
	// unknown action.
	ErrInvalidStrategy = errors.New("recovery: invalid strategy")

	// ErrNoActuator indicates a strategy fired for an action nothing is bound to.
	ErrNoActuator = errors.New("recovery: no actuator bound")

	// ErrUnknownStrategy indicates a strategy or action name the catalog does
	// not contain.
	ErrUnknownStrategy = errors.New("recovery: unknown strategy")

	// ErrInvalidRules indicates a rule pack that cannot be compiled.
	ErrInvalidRules = errors.New("recovery: invalid rule pack")
)
