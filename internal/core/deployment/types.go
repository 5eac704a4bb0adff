package deployment

import (
	"sort"
	"strings"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultPlaybook  = "deployment.playbook.yml"
	DefaultInventory = "deployment.inventory.cfg"
	DefaultBranch    = "master"

	// DefaultRoleDir is the role directory relative to the project directory.
	DefaultRoleDir = ".harbor/deployment"

	// MarkerFile holds the version of the last full synchronization.
	MarkerFile = ".synced"

	// TemplateSuffix marks files that are rendered instead of copied.
	TemplateSuffix = ".tmpl"

	// VaultPasswordSeparator separates vault specifications given as one string.
	VaultPasswordSeparator = "||"
)

// ConfigFileCandidates are tried in order when loading the deployment configuration.
var ConfigFileCandidates = []string{"deployment.yml", "deployment.yaml"}

// =============================================================================
// Apply Options
// =============================================================================

// ApplyOptions configures a single deployment run.
type ApplyOptions struct {
	Playbook       string
	Inventory      string
	PrivateKeyPath string // empty disables the credential agent
	Branch         string
	Profile        string
	Debug          bool
	VaultPasswords []string
}

// WithDefaults returns a copy with empty playbook, inventory and branch filled in.
func (o ApplyOptions) WithDefaults() ApplyOptions {
	if o.Playbook == "" {
		o.Playbook = DefaultPlaybook
	}
	if o.Inventory == "" {
		o.Inventory = DefaultInventory
	}
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}
	return o
}

// SplitVaultPasswords splits a "||" separated list of vault password
// specifications. An empty string yields no specifications.
func SplitVaultPasswords(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, VaultPasswordSeparator)
}

// =============================================================================
// Command Specification
// =============================================================================

// CommandSpec describes an external command. It is converted into a process
// only at the execution boundary (internal/shell/runner).
type CommandSpec struct {
	Program string
	Args    []string
	Dir     string
	Env     map[string]string // overlay on top of the inherited environment
}

// EnvList returns the environment overlay as sorted KEY=VALUE pairs.
func (c CommandSpec) EnvList() []string {
	if len(c.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// String renders the command line for display, quoting arguments that need it.
// The environment overlay is not included.
func (c CommandSpec) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Program))
	for _, a := range c.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
