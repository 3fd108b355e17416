package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		name string
		code int
		err  error
		want ExitClass
	}{
		{"ok", 0, nil, ExitOK},
		{"interrupt", 130, nil, ExitInterrupted},
		{"command not found", 127, nil, ExitCommandNotFound},
		{"failure", 1, nil, ExitFailed},
		{"runtime failure", 125, nil, ExitFailed},
		{"deadline", 137, fmt.Errorf("run: %w", context.DeadlineExceeded), ExitTimeout},
		{"canceled", -1, fmt.Errorf("run: %w", context.Canceled), ExitInterrupted},
		{"start error", -1, errors.New("exec: not found"), ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyExit(tt.code, tt.err))
		})
	}
}

func TestExitClass_IsError(t *testing.T) {
	for _, c := range []ExitClass{ExitOK, ExitTimeout, ExitInterrupted, ExitCommandNotFound} {
		assert.False(t, c.IsError(), c.String())
	}
	assert.True(t, ExitFailed.IsError())
}

func TestExitError_Message(t *testing.T) {
	err := &ExitError{Container: "shell_alice", Code: 2, State: "status=exited"}
	assert.Equal(t, "container shell_alice exited with status 2 (status=exited)", err.Error())
}
