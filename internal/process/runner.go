package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const maxStderrTail = 8 * 1024

// ExitError reports a subprocess that ran but exited with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command '%s' exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

type Command struct {
	Name string
	Args []string
	Dir  string
	// Timeout bounds the run when positive.
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

type ExecRunner struct {
	// Output, when set, also receives the subprocess stdout and stderr as they
	// are produced.
	Output io.Writer
}

var _ Runner = (*ExecRunner)(nil)

func NewExecRunner(output io.Writer) *ExecRunner {
	return &ExecRunner{Output: output}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	if r.Output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Output)
		cmd.Stderr = io.MultiWriter(&stderr, r.Output)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	slog.Debug("running command", "command", c.String(), "dir", c.Dir)

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("command '%s' interrupted: %w", c.String(), ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &ExitError{
				Command:  c.String(),
				ExitCode: exitErr.ExitCode(),
				Stderr:   tail(strings.TrimSpace(res.Stderr), maxStderrTail),
			}
		}
		return res, fmt.Errorf("failed to run command '%s': %w", c.String(), err)
	}

	slog.Debug("command finished", "command", c.Name, "duration", res.Duration)

	return res, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
