package health

import "errors"

var (
	// ErrDuplicateService indicates a service name is already registered.
	ErrDuplicateService = errors.New("health: service already registered")

	// ErrUnknownService indicates no service is registered under a name.
	ErrUnknownService = errors.New("health: unknown service")

	// ErrInvalidService indicates a registration with an empty name or an
	// unusable endpoint.
	ErrInvalidService = errors.New("health: invalid service registration")

	// ErrUnsupportedScheme indicates no prober handles an endpoint's scheme.
	ErrUnsupportedScheme = errors.New("health: unsupported endpoint scheme")
)

// ErrStateUnavailable indicates the health state store could not be reached.
var ErrStateUnavailable = errors.New("health: state store unavailable")
