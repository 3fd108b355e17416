package core

import (
	"errors"
	"fmt"
)

var (
	// ErrRuntimeUnavailable means the runtime binary or daemon cannot be reached
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
	// ErrMisconfigured means the launch options would be rejected
	ErrMisconfigured = errors.New("invalid launch configuration")
	// ErrImageUnavailable means the image is neither local nor pullable
	ErrImageUnavailable = errors.New("image unavailable")
	// ErrFirewall is returned in debug mode when the forwarding rule fails to install
	ErrFirewall = errors.New("port forwarding rule not installed")
	// ErrNoSuchContainer is returned when reattaching to a container that is gone
	ErrNoSuchContainer = errors.New("no such container")
)

// ExitError reports a container that exited with a failure status
type ExitError struct {
	Container string
	Code      int
	State     string
}

func (e *ExitError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("container %s exited with status %d (%s)", e.Container, e.Code, e.State)
	}
	return fmt.Sprintf("container %s exited with status %d", e.Container, e.Code)
}
