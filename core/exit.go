package core

import (
	"context"
	"errors"
)

// Exit statuses with a fixed meaning
const (
	ExitStatusRuntimeFailure  = 125 // the runtime could not create the container
	ExitStatusCommandNotFound = 127
	ExitStatusInterrupted     = 130 // 128 + SIGINT
)

// ExitClass is the outcome of a run
type ExitClass int

const (
	ExitOK ExitClass = iota
	ExitTimeout
	ExitInterrupted
	ExitCommandNotFound
	ExitFailed
)

func (c ExitClass) String() string {
	switch c {
	case ExitOK:
		return "ok"
	case ExitTimeout:
		return "timeout"
	case ExitInterrupted:
		return "interrupted"
	case ExitCommandNotFound:
		return "command-not-found"
	case ExitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsError reports whether the class aborts the attempt
func (c ExitClass) IsError() bool {
	return c == ExitFailed
}

// ClassifyExit maps a runtime exit status and run error to an ExitClass.
// A deadline takes precedence over whatever status the killed CLI reported.
func ClassifyExit(code int, runErr error) ExitClass {
	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(runErr, context.Canceled):
		return ExitInterrupted
	case runErr != nil:
		return ExitFailed
	}

	switch code {
	case 0:
		return ExitOK
	case ExitStatusInterrupted:
		return ExitInterrupted
	case ExitStatusCommandNotFound:
		return ExitCommandNotFound
	default:
		return ExitFailed
	}
}

// Result describes a finished launch or reattach
type Result struct {
	LaunchID  string
	Container string
	Class     ExitClass
	Code      int
	Ephemeral bool
	HostPort  int // 0 unless forwarded
	// State is the runtime's view of the container, collected for failed exits
	State string
}
