package system

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// overridable for testing purposes
var execCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandError is returned when a helper command exits unsuccessfully.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s %v: %v", e.Command, e.Args, e.Err)
	}
	return fmt.Sprintf("%s %v: %v: %s", e.Command, e.Args, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := execCommand(ctx, name, args...)
	if err != nil {
		return out, &CommandError{
			Command:  name,
			Args:     args,
			ExitCode: errToExitCode(err),
			Output:   string(bytes.TrimSpace(out)),
			Err:      err,
		}
	}
	return out, nil
}

// helper to isolate from [exec.ExitError]
func errToExitCode(err error) int {
	type exitCode interface{ ExitCode() int }

	if e, ok := err.(exitCode); ok {
		return e.ExitCode()
	}
	return 0
}
