// Package proc runs short-lived child processes with their combined output
// streamed to a caller-supplied writer.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Result is the outcome of a child process that ran to completion.
type Result struct {
	// ExitCode is the child's exit status, or -1 if it was terminated by a signal.
	ExitCode int
}

// Success reports whether the child exited with status 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// StartError reports that the child could not be spawned at all, for example
// because the command does not exist or is not executable.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("proc: start %s: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Run starts name with args, merges the child's stderr into its stdout and
// copies that stream into out until EOF before waiting for the exit status.
// The child's stdin is closed immediately after start.
//
// A non-zero exit is not an error: it is reported through Result.ExitCode.
// Errors are returned when the child cannot be spawned (*StartError), when ctx
// is done before the child exits or before it starts (wrapping ctx.Err()), or
// when the pipe cannot be set up.
func Run(ctx context.Context, out io.Writer, name string, args ...string) (Result, error) {
	if out == nil {
		out = io.Discard
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("proc: create pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	stdin, err := cmd.StdinPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return Result{ExitCode: -1}, fmt.Errorf("proc: stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		// Start fails with ctx.Err() when ctx is already done; that is an
		// interruption, not a missing command.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{ExitCode: -1}, fmt.Errorf("proc: %s: %w", commandLine(name, args), ctxErr)
		}
		return Result{ExitCode: -1}, &StartError{Name: commandLine(name, args), Err: err}
	}

	// Only the child holds the write end now, so the copy below sees EOF
	// once the child (and anything it forked) exits.
	pw.Close()
	stdin.Close()

	_, copyErr := io.Copy(out, pr)
	if copyErr != nil {
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}
	pr.Close()

	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{ExitCode: -1}, fmt.Errorf("proc: %s: %w", commandLine(name, args), ctxErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{ExitCode: -1}, fmt.Errorf("proc: wait %s: %w", commandLine(name, args), waitErr)
		}
		return Result{ExitCode: exitErr.ExitCode()}, nil
	}

	if copyErr != nil {
		return Result{ExitCode: 0}, fmt.Errorf("proc: forward output of %s: %w", commandLine(name, args), copyErr)
	}
	return Result{ExitCode: 0}, nil
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
