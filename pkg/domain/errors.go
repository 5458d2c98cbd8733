package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user rejects a plan or quits the edit
// sub-flow. Nothing was executed after the cancellation point.
var ErrCancelled = errors.New("user cancelled execution")

// BlockedError is returned when a command matched the safety blocklist.
// The whole action is abandoned; no later steps run.
type BlockedError struct {
	Command string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("command blocked by safety policy: %s", e.Command)
}

// StepFailedError is returned when the user aborts after a failed step.
type StepFailedError struct {
	StepID string
	Reason string
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step failed: %s - %s", e.StepID, e.Reason)
}

// CommandFailedError wraps an I/O or spawn failure while running a step or
// talking to the terminal during a prompt.
type CommandFailedError struct {
	Reason string
}

func (e *CommandFailedError) Error() string {
	return "command failed: " + e.Reason
}

// ShellExitError reports a nonzero or signaled exit of the wrapped shell.
// It is fatal to the session.
type ShellExitError struct {
	Code int
}

func (e *ShellExitError) Error() string {
	return fmt.Sprintf("shell exited with code: %d", e.Code)
}
