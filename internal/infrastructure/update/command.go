package update

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned when the configured command line is blank.
var ErrEmptyCommand = errors.New("empty command")

// ExecRunner runs a configured command line in a directory. The line is
// split on whitespace and executed directly, without a shell.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes commandLine in dir and returns its combined output.
func (ExecRunner) Run(ctx context.Context, dir, commandLine string) (string, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return "", ErrEmptyCommand
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return out.String(), fmt.Errorf("%s: %w", commandLine, err)
	}
	return out.String(), nil
}
