package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrConverterExit indicates an external converter returned a non-zero
// status. The captured stderr travels with the error.
var ErrConverterExit = errors.New("docpress: converter exited with error")

// Command describes one external converter invocation.
type Command struct {
	Name string   // binary name or path
	Args []string // order-sensitive for some tools
	Dir  string   // working directory; empty means inherit
}

// String renders the invocation for logs.
func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ExitError carries the captured error stream of a failed invocation.
type ExitError struct {
	Command Command
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrConverterExit, e.Command.Name, e.Err)
}

func (e *ExitError) Unwrap() error { return ErrConverterExit }

// Runner executes converter commands. The indirection keeps the dispatcher
// testable without the external tools installed.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as blocking subprocesses, capturing stderr.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stderr bytes.Buffer
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		return &ExitError{Command: cmd, Stderr: stderr.String(), Err: err}
	}
	return nil
}
