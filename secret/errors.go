package secret

import "errors"

var (
	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrUnknownProvider indicates a secretref naming an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrEmptySecret indicates a strict resolver got an empty value.
	ErrEmptySecret = errors.New("secret: provider returned empty value")

	// ErrNotFound indicates the provider has no secret under the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrInvalidRef indicates a malformed reference.
	ErrInvalidRef = errors.New("secret: invalid reference")
)
