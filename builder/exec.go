package builder

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Runner runs an external command.
type Runner interface {
	Run(ctx context.Context, argv []string, stdout, stderr io.Writer) error
}

// ProcessError is returned when an external tool could not be started or
// exited with a nonzero status. ExitCode is -1 when the process never ran.
type ProcessError struct {
	Argv     []string
	ExitCode int
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("failed to run %s: %v", e.Argv[0], e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Command returns the failed command line, for diagnostics.
func (e *ProcessError) Command() string {
	return strings.Join(e.Argv, " ")
}

// ExecRunner runs commands as child processes of this one.
type ExecRunner struct {
	Dir string
}

// Run implements Runner. The command is never retried: flashing is not safe
// to repeat blindly.
func (r ExecRunner) Run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	if len(argv) == 0 || argv[0] == "" {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ProcessError{Argv: argv, ExitCode: code, Err: err}
	}
	return nil
}
