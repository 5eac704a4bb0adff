package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/artpar/harbor/internal/core/validation"
	"github.com/artpar/harbor/internal/shell/rolesync"
	"github.com/artpar/harbor/internal/shell/runner"
	"github.com/artpar/harbor/internal/shell/sshagent"
	"github.com/google/uuid"
)

// =============================================================================
// Credential Agent
// =============================================================================

// AgentSession is a running credential agent.
type AgentSession interface {
	Env() map[string]string
	Stop() error
}

// AgentStarter starts a credential agent holding one private key.
type AgentStarter interface {
	Start(ctx context.Context, keyPath string) (AgentSession, error)
}

type sshAgentStarter struct {
	agent *sshagent.Agent
}

// SSHAgent adapts an sshagent.Agent to AgentStarter.
func SSHAgent(agent *sshagent.Agent) AgentStarter {
	return sshAgentStarter{agent: agent}
}

func (s sshAgentStarter) Start(ctx context.Context, keyPath string) (AgentSession, error) {
	session, err := s.agent.Start(ctx, keyPath)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// =============================================================================
// Executor
// =============================================================================

// ExecutorConfig holds the dependencies of an Executor.
type ExecutorConfig struct {
	ProjectDir      string
	Preparer        *rolesync.Preparer
	Runner          runner.Runner
	Agent           AgentStarter
	PlaybookProgram string
	VagrantProgram  string

	// VaultBaseDir resolves relative vault password files. Defaults to ProjectDir.
	VaultBaseDir string
}

// Executor runs deployments and the maintenance tasks around them.
type Executor struct {
	cfg    ExecutorConfig
	logger *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExecRunner(logger)
	}
	if cfg.Agent == nil {
		cfg.Agent = SSHAgent(sshagent.New(sshagent.Options{}, logger))
	}
	if cfg.VaultBaseDir == "" {
		cfg.VaultBaseDir = cfg.ProjectDir
	}
	return &Executor{cfg: cfg, logger: logger}
}

// Apply runs the deployment playbook against the inventory.
//
// It reports true when the playbook exits with status 0. A playbook failure is
// logged and reported as false with a nil error; the error is reserved for
// failures that prevented the playbook from running. The working directory
// and the credential agent are restored on every path.
func (e *Executor) Apply(ctx context.Context, opts deployment.ApplyOptions) (bool, error) {
	logger := e.logger.With("run_id", uuid.NewString())

	opts = opts.WithDefaults()
	if field, msg := validation.ValidateApplyOptions(opts); field != "" {
		return false, fmt.Errorf("%w: %s: %s", deployment.ErrInvalidOptions, field, msg)
	}

	roleDir := e.cfg.Preparer.RoleDir()
	if !e.cfg.Preparer.IsConfigured() {
		return false, fmt.Errorf("%w: %s has no %s marker", deployment.ErrRoleNotConfigured, roleDir, deployment.MarkerFile)
	}

	if _, err := e.cfg.Preparer.Prepare(ctx, false); err != nil {
		return false, err
	}

	vaultFlags := deployment.VaultFlags(opts.VaultPasswords, e.cfg.VaultBaseDir, fileExists)

	keyPath := ""
	if opts.PrivateKeyPath != "" {
		var err error
		if keyPath, err = expandPath(opts.PrivateKeyPath, e.cfg.ProjectDir); err != nil {
			return false, err
		}
	}

	restore, err := enterDir(roleDir)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := restore(); err != nil {
			logger.Warn("could not restore working directory", "error", err)
		}
	}()

	var agentEnv map[string]string
	if keyPath != "" {
		session, err := e.cfg.Agent.Start(ctx, keyPath)
		if err != nil {
			return false, err
		}
		defer func() {
			if err := session.Stop(); err != nil {
				logger.Warn("could not stop ssh-agent", "error", err)
			}
		}()
		agentEnv = session.Env()
	}

	spec := deployment.BuildPlaybookCommand(deployment.PlaybookParams{
		Program:    e.cfg.PlaybookProgram,
		RoleDir:    roleDir,
		Playbook:   opts.Playbook,
		Inventory:  opts.Inventory,
		Branch:     opts.Branch,
		Profile:    opts.Profile,
		Debug:      opts.Debug,
		VaultFlags: vaultFlags,
		Env:        agentEnv,
	})

	logger.Info("running deployment", "playbook", opts.Playbook, "inventory", opts.Inventory, "branch", opts.Branch)
	code, err := e.cfg.Runner.Run(ctx, spec)
	if err != nil {
		return false, fmt.Errorf("run playbook: %w", err)
	}
	if code != 0 {
		cmdErr := &deployment.CommandError{Command: spec.String(), ExitCode: code}
		logger.Error("deployment failed", "error", cmdErr, "exit_code", code)
		return false, nil
	}

	logger.Info("deployment finished")
	return true, nil
}

// =============================================================================
// Helpers
// =============================================================================

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// expandPath resolves a leading ~ to the home directory and makes path
// absolute against base.
func expandPath(path, base string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return path, nil
}

// enterDir changes the working directory to dir and returns a function that
// changes it back.
func enterDir(dir string) (func() error, error) {
	previous, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("enter role directory: %w", err)
	}
	return func() error {
		return os.Chdir(previous)
	}, nil
}
