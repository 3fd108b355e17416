package util

import (
	"context"
	"errors"
	"fmt"
)

// CleanupFunc reverses one side effect
type CleanupFunc func(ctx context.Context) error

type cleanupStep struct {
	name string
	fn   CleanupFunc
}

// CleanupStack records inverse actions for side-effecting steps.
// Unwind runs them in reverse registration order.
type CleanupStack struct {
	steps []cleanupStep
}

// Push registers the inverse of a step that just succeeded
func (s *CleanupStack) Push(name string, fn CleanupFunc) {
	if fn == nil {
		return
	}
	s.steps = append(s.steps, cleanupStep{name: name, fn: fn})
}

// Len returns the number of pending inverse actions
func (s *CleanupStack) Len() int {
	return len(s.steps)
}

// Names returns the pending step names in registration order
func (s *CleanupStack) Names() []string {
	names := make([]string, 0, len(s.steps))
	for _, step := range s.steps {
		names = append(names, step.name)
	}
	return names
}

// Unwind runs every pending inverse action, last first, and empties the stack.
// All actions run even if some fail; failures are joined.
func (s *CleanupStack) Unwind(ctx context.Context) error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", step.name, err))
		}
	}
	s.steps = nil
	return errors.Join(errs...)
}

// Discard drops pending inverse actions once the launch has committed
func (s *CleanupStack) Discard() {
	s.steps = nil
}
