// Package deployment provides pure functions for deployment role management.
//
// This package contains the functional core logic for synchronizing a role
// directory and running a deployment. All functions are pure (no I/O, no side
// effects); filesystem and process access is passed in as values or callbacks.
//
// # Functions
//
//   - Variables: Merge environment, configuration and derived values (ResolveVariables)
//   - Rendering: Render .tmpl files with strict-undefined semantics (Render)
//   - Sync state: Decide whether a full structural pass is needed (NeedsFullSync, StalenessNotice)
//   - Agent: Parse ssh-agent output into socket and pid (ParseAgentOutput)
//   - Commands: Build playbook, role install and vagrant invocations (BuildPlaybookCommand, VaultFlags)
//   - Errors: The failure taxonomy shared by the shell packages (ErrConfigNotFound, ...)
//
// # Usage
//
// The imperative shell (internal/shell/rolesync, internal/engine) uses these
// pure functions to plan the work, then performs it against the filesystem
// and external processes.
//
//	vars, err := deployment.ResolveVariables(os.Environ(), cfg, gitremote.Lookup(dir))
//	out, err := deployment.Render("inventory.cfg.tmpl", content, vars)
//	cmd := deployment.BuildPlaybookCommand(params)
package deployment
