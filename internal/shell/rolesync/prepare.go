package rolesync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/artpar/harbor/internal/shell/gitremote"
	"github.com/artpar/harbor/internal/shell/runner"
)

// ConfigSource provides the deployment configuration for variable resolution.
type ConfigSource interface {
	Values() (deployment.ConfigValues, error)
}

// PreparerConfig configures a Preparer.
type PreparerConfig struct {
	RoleDir       string // absolute path of the role directory
	Source        fs.FS  // template tree; defaults to the embedded tree
	Version       string // version recorded in the marker after a full pass
	Config        ConfigSource
	Environ       func() []string
	Remote        deployment.RemoteURLFunc
	Runner        runner.Runner // runs ansible-galaxy; nil skips role installation
	GalaxyProgram string
}

// PrepareResult describes what Prepare did.
type PrepareResult struct {
	FullSync       bool
	Templates      Result
	Structure      Result
	RolesInstalled bool
}

// Preparer keeps a role directory in sync with the template tree.
type Preparer struct {
	cfg    PreparerConfig
	sync   *Synchronizer
	logger *slog.Logger
}

// NewPreparer creates a Preparer.
func NewPreparer(cfg PreparerConfig, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Source == nil {
		cfg.Source = Templates()
	}
	if cfg.Environ == nil {
		cfg.Environ = os.Environ
	}
	return &Preparer{
		cfg:    cfg,
		sync:   NewSynchronizer(logger),
		logger: logger,
	}
}

// RoleDir returns the role directory managed by this Preparer.
func (p *Preparer) RoleDir() string {
	return p.cfg.RoleDir
}

// IsConfigured reports whether the role directory has been fully synchronized.
func (p *Preparer) IsConfigured() bool {
	return IsConfigured(p.cfg.RoleDir)
}

// Prepare synchronizes the role directory.
//
// The template-only pass always runs so rendered configuration follows
// deployment.yml. The full structural pass runs when force is set, when the
// role directory has no marker, or when the marker holds another version; it
// may overwrite files edited by hand in the role directory. After a full pass
// the roles in requirements.yml are installed and the marker is rewritten.
func (p *Preparer) Prepare(ctx context.Context, force bool) (PrepareResult, error) {
	var res PrepareResult

	values, err := p.cfg.Config.Values()
	if err != nil {
		return res, err
	}

	vars, err := deployment.ResolveVariables(p.cfg.Environ(), values, p.cfg.Remote)
	if err != nil {
		p.logger.Warn("variable not derived, templates using it will fail", "error", err)
	}
	if url, ok := vars[deployment.GitURLVariable].(string); ok {
		p.logger.Debug("resolved git remote", "git_url", gitremote.SafeURL(url))
	}

	p.logger.Info("checking role installation", "role_dir", p.cfg.RoleDir)
	if err := mkdirSilent(p.cfg.RoleDir, true); err != nil {
		return res, err
	}

	marker, present, err := ReadMarker(p.cfg.RoleDir)
	if err != nil {
		return res, err
	}
	if present {
		if notice := deployment.StalenessNotice(marker, p.cfg.Version); notice != "" {
			p.logger.Warn(notice, "synced_version", marker, "current_version", p.cfg.Version)
		}
	}

	res.Templates, err = p.sync.Sync(p.cfg.Source, p.cfg.RoleDir, vars, true)
	if err != nil {
		return res, fmt.Errorf("synchronize templates: %w", err)
	}

	if !deployment.NeedsFullSync(force, marker, present, p.cfg.Version) {
		return res, nil
	}

	p.logger.Info("role will be updated", "version", p.cfg.Version)
	res.FullSync = true

	res.Structure, err = p.sync.Sync(p.cfg.Source, p.cfg.RoleDir, vars, false)
	if err != nil {
		return res, fmt.Errorf("synchronize structure: %w", err)
	}

	res.RolesInstalled, err = p.installRoles(ctx)
	if err != nil {
		return res, err
	}

	if err := WriteMarker(p.cfg.RoleDir, p.cfg.Version); err != nil {
		return res, err
	}
	return res, nil
}

// installRoles downloads the roles listed in requirements.yml, when present.
func (p *Preparer) installRoles(ctx context.Context) (bool, error) {
	if p.cfg.Runner == nil {
		return false, nil
	}
	_, err := os.Stat(filepath.Join(p.cfg.RoleDir, deployment.RequirementsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &deployment.SyncError{Op: "stat", Path: deployment.RequirementsFile, Err: err}
	}

	p.logger.Debug("downloading fresh roles")
	spec := deployment.BuildRoleInstallCommand(p.cfg.GalaxyProgram, p.cfg.RoleDir)
	code, err := p.cfg.Runner.Run(ctx, spec)
	if err != nil {
		return false, fmt.Errorf("%w: %w", deployment.ErrRoleInstall, err)
	}
	if code != 0 {
		return false, fmt.Errorf("%w: %w", deployment.ErrRoleInstall, &deployment.CommandError{Command: spec.String(), ExitCode: code})
	}
	return true, nil
}
