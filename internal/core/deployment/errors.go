package deployment

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Configuration errors
	ErrConfigNotFound = errors.New("deployment configuration not found")
	ErrConfigParse    = errors.New("deployment configuration is malformed")
	ErrConfigExists   = errors.New("deployment configuration already exists")

	// Synchronization errors
	ErrMissingVariable = errors.New("template references an undefined variable")
	ErrSyncIO          = errors.New("role synchronization failed")
	ErrRoleInstall     = errors.New("role installation failed")

	// Execution errors
	ErrRoleNotConfigured = errors.New("deployment role is not configured")
	ErrAgentSpawn        = errors.New("credential agent could not be started")
	ErrCommandFailed     = errors.New("deployment command failed")
	ErrInvalidOptions    = errors.New("invalid deployment options")
)

// ConfigError wraps configuration loading errors with the files that were tried.
type ConfigError struct {
	Dir        string
	Candidates []string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v (looked for %s in %s)", e.Err, strings.Join(e.Candidates, ", "), e.Dir)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// MissingVariableError reports a template variable that is not defined.
type MissingVariableError struct {
	Variable string
	Source   string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("variable %q is undefined - required in %s, please define it in deployment.yml", e.Variable, e.Source)
}

func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}

// SyncError wraps an I/O failure during role synchronization.
type SyncError struct {
	Op   string // mkdir, read, write, render
	Path string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{ErrSyncIO, e.Err}
}

// AgentError wraps credential agent failures.
type AgentError struct {
	Op     string
	Output string
	Err    error
}

func (e *AgentError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v (output: %q)", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// CommandError reports an external command that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// Remedy returns the action an operator should take to resolve err.
// Returns an empty string when there is no specific advice.
func Remedy(err error) string {
	switch {
	case errors.Is(err, ErrConfigNotFound):
		return "create deployment.yml (see `harbor deployment create-example`)"
	case errors.Is(err, ErrConfigExists):
		return "edit the existing deployment configuration instead"
	case errors.Is(err, ErrConfigParse):
		return "fix the syntax of the deployment configuration file"
	case errors.Is(err, ErrMissingVariable):
		return "define this variable in deployment.yml"
	case errors.Is(err, ErrRoleNotConfigured):
		return "run `harbor deployment files update` first"
	case errors.Is(err, ErrAgentSpawn):
		return "check that ssh-agent is installed and working"
	default:
		return ""
	}
}
