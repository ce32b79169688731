package actuator

import "errors"

var (
	// ErrTargetNotFound indicates the infrastructure object behind a service
	// does not exist.
	ErrTargetNotFound = errors.New("actuator: target not found")

	// ErrAtCapacity indicates a scale-up was refused because the target is
	// already at its replica ceiling.
	ErrAtCapacity = errors.New("actuator: target at maximum replicas")

	// ErrNoPreviousRevision indicates a rollback with nothing to roll back to.
	ErrNoPreviousRevision = errors.New("actuator: no previous revision")

	// ErrRejected indicates a remote endpoint refused the request. It is not
	// worth retrying.
	ErrRejected = errors.New("actuator: request rejected")

	// ErrRemote indicates a remote endpoint failed; retrying may help.
	ErrRemote = errors.New("actuator: remote endpoint error")
)
