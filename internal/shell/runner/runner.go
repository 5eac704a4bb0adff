// Package runner executes deployment.CommandSpec values as external processes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/artpar/harbor/internal/core/deployment"
)

// Runner runs an external command and reports its exit code. A non-zero exit
// is not an error; err is only set when the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, spec deployment.CommandSpec) (exitCode int, err error)
}

// ExecRunner runs commands with os/exec, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewExecRunner creates a runner that streams to the process stdout and stderr.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

// Run executes spec and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, spec deployment.CommandSpec) (int, error) {
	cmd := Command(ctx, spec)
	cmd.Stdin = os.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	r.Logger.Debug("running command", "command", spec.String(), "dir", spec.Dir)

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("run %s: %w", spec.Program, err)
	}
	return 0, nil
}

// Output executes spec and returns its standard output. Standard error is
// included in the returned error when the command fails.
func Output(ctx context.Context, spec deployment.CommandSpec) (string, error) {
	cmd := Command(ctx, spec)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return string(out), fmt.Errorf("%s: %w (stderr: %s)", spec.Program, err, string(exitErr.Stderr))
		}
		return string(out), fmt.Errorf("%s: %w", spec.Program, err)
	}
	return string(out), nil
}

// Command converts spec into an *exec.Cmd. The environment overlay is appended
// to the inherited environment, so overlay values win.
func Command(ctx context.Context, spec deployment.CommandSpec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	if env := spec.EnvList(); len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd
}
