package deployment

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Variable Resolution
// =============================================================================

// Derived variables inserted when the configuration does not define them.
const (
	GitURLVariable       = "git_url"
	GitSecretURLVariable = "git_secret_url"
)

// VariableSet maps template variable names to values. Environment values are
// strings; configuration values keep their decoded shape.
type VariableSet map[string]any

// Has reports whether name is defined.
func (v VariableSet) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// ConfigValues is the read-only view of a loaded deployment configuration.
type ConfigValues interface {
	Keys() []string
	Get(key string) (any, bool)
}

// RemoteURLFunc returns the URL of the source-control remote "origin".
type RemoteURLFunc func() (string, error)

// DerivationError reports a derived variable that could not be computed.
// It is not fatal: templates that need the variable fail with MissingVariableError.
type DerivationError struct {
	Variable string
	Err      error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("cannot derive %s: %v", e.Variable, e.Err)
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}

// ResolveVariables merges the process environment, the deployment configuration
// and derived defaults into one VariableSet.
//
// Precedence, lowest first:
//   - environ entries (KEY=VALUE)
//   - configuration entries, except null values
//   - git_url from remote() and git_secret_url copied from git_url, only when absent
//
// A failing remote() leaves git_url undefined and is returned as a *DerivationError
// alongside the otherwise complete set.
func ResolveVariables(environ []string, cfg ConfigValues, remote RemoteURLFunc) (VariableSet, error) {
	vars := make(VariableSet, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}

	if cfg != nil {
		for _, k := range cfg.Keys() {
			// A key without a value counts as undefined.
			if v, ok := cfg.Get(k); ok && v != nil {
				vars[k] = v
			}
		}
	}

	var derr error
	if !vars.Has(GitURLVariable) {
		if remote == nil {
			derr = &DerivationError{Variable: GitURLVariable, Err: fmt.Errorf("no remote lookup configured")}
		} else if url, err := remote(); err != nil {
			derr = &DerivationError{Variable: GitURLVariable, Err: err}
		} else {
			vars[GitURLVariable] = strings.TrimRight(url, " \t\r\n")
		}
	}

	if !vars.Has(GitSecretURLVariable) {
		if url, ok := vars[GitURLVariable]; ok {
			vars[GitSecretURLVariable] = strings.TrimRight(fmt.Sprint(url), "\r\n")
		}
	}

	return vars, derr
}

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// varPlaceholderRegex matches ${VAR} and ${VAR:-default} patterns.
// Groups:
//   - Group 1: Variable name (required)
//   - Group 2: ":-" marker (optional)
//   - Group 3: Default value (optional)
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders with values
// from the variables map. It is used for option values that come from
// configuration files, where no shell expands them (e.g. git_key: ${HOME}/.ssh/id_rsa).
//
// Behavior:
//   - ${VAR} - replaced with variables["VAR"] if exists, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if exists, otherwise "default"
//
// Examples:
//
//	SubstituteVariables("${HOME}/.ssh/id_rsa", map[string]string{"HOME": "/root"})
//	// Returns: "/root/.ssh/id_rsa"
//
//	SubstituteVariables("${KEY:-id_rsa}", map[string]string{})
//	// Returns: "id_rsa"
func SubstituteVariables(value string, variables map[string]string) string {
	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		submatch := varPlaceholderRegex.FindStringSubmatch(match)
		if val, ok := variables[submatch[1]]; ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}

// EnvironMap converts KEY=VALUE pairs into a map.
func EnvironMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
