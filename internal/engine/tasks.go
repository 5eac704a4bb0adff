package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/artpar/harbor/internal/core/validation"
	"github.com/artpar/harbor/internal/shell/rolesync"
	"github.com/mattn/go-shellwords"
)

// UpdateFiles forces a full synchronization of the role directory, overwriting
// structural files and reinstalling roles.
func (e *Executor) UpdateFiles(ctx context.Context) (rolesync.PrepareResult, error) {
	res, err := e.cfg.Preparer.Prepare(ctx, true)
	if err != nil {
		return res, err
	}
	e.logger.Info("role files updated",
		"role_dir", e.cfg.Preparer.RoleDir(),
		"rendered", res.Structure.Rendered,
		"copied", res.Structure.Copied,
		"roles_installed", res.RolesInstalled,
	)
	return res, nil
}

// CreateExample writes the example deployment configuration into the project
// directory and returns its path. An existing configuration is never replaced.
func (e *Executor) CreateExample() (string, error) {
	for _, name := range deployment.ConfigFileCandidates {
		path := filepath.Join(e.cfg.ProjectDir, name)
		_, err := os.Stat(path)
		if err == nil {
			return "", fmt.Errorf("%w: %s", deployment.ErrConfigExists, path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", &deployment.SyncError{Op: "stat", Path: path, Err: err}
		}
	}

	path := filepath.Join(e.cfg.ProjectDir, deployment.ConfigFileCandidates[0])
	if err := os.WriteFile(path, rolesync.ExampleConfig(), 0644); err != nil {
		return "", &deployment.SyncError{Op: "write", Path: path, Err: err}
	}

	e.logger.Info("example configuration created", "path", path)
	return path, nil
}

// Vagrant runs vagrant with the given command line inside the role directory.
// It reports false when vagrant exits with a non-zero status.
func (e *Executor) Vagrant(ctx context.Context, commandLine string) (bool, error) {
	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return false, fmt.Errorf("%w: cmd: %w", deployment.ErrInvalidOptions, err)
	}
	if field, msg := validation.ValidateVagrantArgs(args); field != "" {
		return false, fmt.Errorf("%w: %s: %s", deployment.ErrInvalidOptions, field, msg)
	}

	spec := deployment.BuildVagrantCommand(e.cfg.VagrantProgram, e.cfg.Preparer.RoleDir(), args)
	code, err := e.cfg.Runner.Run(ctx, spec)
	if err != nil {
		return false, fmt.Errorf("run vagrant: %w", err)
	}
	if code != 0 {
		e.logger.Error("vagrant failed", "error", &deployment.CommandError{Command: spec.String(), ExitCode: code})
		return false, nil
	}
	return true, nil
}
