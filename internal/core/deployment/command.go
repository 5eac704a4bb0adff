package deployment

import (
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// Playbook Command
// =============================================================================

// Extra variables passed to every playbook run.
const (
	BranchVariable  = "git_branch"
	ProfileVariable = "deployment_profile"
)

// PlaybookParams holds the inputs for BuildPlaybookCommand.
type PlaybookParams struct {
	Program    string // defaults to ansible-playbook
	RoleDir    string
	Playbook   string
	Inventory  string
	Branch     string
	Profile    string
	Debug      bool
	VaultFlags []string
	Env        map[string]string // credential agent coordinates, if any
}

// BuildPlaybookCommand builds the ansible-playbook invocation for a deployment run.
//
// Argument order:
//
//	./<playbook> -i <inventory> [-vv] -e git_branch=<branch> -e deployment_profile=<profile> [vault flags...]
func BuildPlaybookCommand(p PlaybookParams) CommandSpec {
	program := p.Program
	if program == "" {
		program = "ansible-playbook"
	}

	var opts []string
	if p.Debug {
		opts = append(opts, "-vv")
	}
	opts = append(opts,
		"-e", BranchVariable+"="+p.Branch,
		"-e", ProfileVariable+"="+p.Profile,
	)
	opts = append(opts, p.VaultFlags...)

	args := []string{"./" + strings.TrimPrefix(p.Playbook, "./"), "-i", p.Inventory}
	args = append(args, opts...)

	var env map[string]string
	if len(p.Env) > 0 {
		env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			env[k] = v
		}
	}

	return CommandSpec{
		Program: program,
		Args:    args,
		Dir:     p.RoleDir,
		Env:     env,
	}
}

// =============================================================================
// Vault Flags
// =============================================================================

// VaultFlags translates vault password specifications positionally. The n-th
// specification (starting at 1) becomes --vault-password-file when
// baseDir/<spec> is an existing file, otherwise --vault-id=<n>@<spec>.
//
// Example:
//
//	VaultFlags([]string{"secretA.txt", "42"}, "/project", exists)
//	// Returns: ["--vault-password-file=/project/secretA.txt", "--vault-id=2@42"]
func VaultFlags(specs []string, baseDir string, fileExists func(path string) bool) []string {
	flags := make([]string, 0, len(specs))
	for i, spec := range specs {
		n := i + 1
		path := spec
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, spec)
		}
		if spec != "" && fileExists != nil && fileExists(path) {
			flags = append(flags, "--vault-password-file="+path)
			continue
		}
		flags = append(flags, fmt.Sprintf("--vault-id=%d@%s", n, spec))
	}
	return flags
}

// =============================================================================
// Auxiliary Commands
// =============================================================================

// RequirementsFile lists the roles installed after a full synchronization.
const RequirementsFile = "requirements.yml"

// BuildRoleInstallCommand builds the ansible-galaxy invocation that installs
// the roles listed in requirements.yml into roleDir/roles.
func BuildRoleInstallCommand(program, roleDir string) CommandSpec {
	if program == "" {
		program = "ansible-galaxy"
	}
	return CommandSpec{
		Program: program,
		Args:    []string{"install", "-r", RequirementsFile, "-p", "roles/", "--force"},
		Dir:     roleDir,
	}
}

// BuildVagrantCommand builds a vagrant invocation run inside the role directory.
func BuildVagrantCommand(program, roleDir string, args []string) CommandSpec {
	if program == "" {
		program = "vagrant"
	}
	return CommandSpec{
		Program: program,
		Args:    append([]string(nil), args...),
		Dir:     roleDir,
	}
}
