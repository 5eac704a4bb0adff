package deployment

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypes_Unwrap(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		target  error
		wantMsg string
	}{
		{
			name:    "config not found",
			err:     &ConfigError{Dir: "/project", Candidates: ConfigFileCandidates, Err: ErrConfigNotFound},
			target:  ErrConfigNotFound,
			wantMsg: "deployment configuration not found (looked for deployment.yml, deployment.yaml in /project)",
		},
		{
			name:    "missing variable",
			err:     &MissingVariableError{Variable: "domain", Source: "all.yml.tmpl"},
			target:  ErrMissingVariable,
			wantMsg: `variable "domain" is undefined - required in all.yml.tmpl, please define it in deployment.yml`,
		},
		{
			name:    "sync io",
			err:     &SyncError{Op: "write", Path: "/role/ansible.cfg", Err: fs.ErrPermission},
			target:  ErrSyncIO,
			wantMsg: "write /role/ansible.cfg: permission denied",
		},
		{
			name:    "command failure",
			err:     &CommandError{Command: "ansible-playbook", ExitCode: 2},
			target:  ErrCommandFailed,
			wantMsg: "ansible-playbook exited with code 2",
		},
		{
			name:    "agent spawn",
			err:     &AgentError{Op: "start agent", Err: fmt.Errorf("%w: exit status 1", ErrAgentSpawn)},
			target:  ErrAgentSpawn,
			wantMsg: "start agent: credential agent could not be started: exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestSyncError_KeepsCause(t *testing.T) {
	err := &SyncError{Op: "mkdir", Path: "/role/roles", Err: fs.ErrPermission}
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestRemedy(t *testing.T) {
	assert.Contains(t, Remedy(&MissingVariableError{Variable: "x"}), "define this variable")
	assert.Contains(t, Remedy(fmt.Errorf("apply: %w", ErrRoleNotConfigured)), "harbor deployment files update")
	assert.Contains(t, Remedy(&ConfigError{Err: ErrConfigNotFound}), "create-example")
	assert.Empty(t, Remedy(errors.New("unrelated")))
}
