package rolesync

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() fstest.MapFS {
	return fstest.MapFS{
		"ansible.cfg":                   {Data: []byte("[defaults]\n"), Mode: 0644},
		"bin/run.sh":                    {Data: []byte("#!/bin/sh\necho run\n"), Mode: 0755},
		"inventory.cfg.tmpl":            {Data: []byte("host={{ .host }}\n"), Mode: 0644},
		"group_vars/all.yml.tmpl":       {Data: []byte("git_url: {{ .git_url }}\n"), Mode: 0644},
		"roles/placeholder/tasks/.keep": {Data: []byte(""), Mode: 0644},
	}
}

func testVars() deployment.VariableSet {
	return deployment.VariableSet{"host": "10.0.0.1", "git_url": "git@example.org:app.git"}
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// Sync Tests
// =============================================================================

func TestSync_Full(t *testing.T) {
	dest := filepath.Join(t.TempDir(), ".harbor", "deployment")

	res, err := NewSynchronizer(nil).Sync(testTree(), dest, testVars(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rendered)
	assert.Equal(t, 3, res.Copied)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 6, res.Directories) // ., bin, group_vars, roles, roles/placeholder, roles/placeholder/tasks

	assert.Equal(t, "[defaults]\n", readString(t, filepath.Join(dest, "ansible.cfg")))
	assert.Equal(t, "host=10.0.0.1\n", readString(t, filepath.Join(dest, "inventory.cfg")))
	assert.Equal(t, "git_url: git@example.org:app.git\n", readString(t, filepath.Join(dest, "group_vars", "all.yml")))
	assert.NoFileExists(t, filepath.Join(dest, "inventory.cfg.tmpl"))
	assert.DirExists(t, filepath.Join(dest, "roles", "placeholder", "tasks"))
}

func TestSync_PreservesPermissions(t *testing.T) {
	dest := t.TempDir()

	_, err := NewSynchronizer(nil).Sync(testTree(), dest, testVars(), false)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "bin", "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0755), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dest, "ansible.cfg"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0644), info.Mode().Perm())
}

func TestSync_RenderedTemplateKeepsMode(t *testing.T) {
	dest := t.TempDir()
	src := fstest.MapFS{
		"bin/deploy.sh.tmpl": {Data: []byte("#!/bin/sh\nssh {{ .host }}\n"), Mode: 0755},
		"hosts.tmpl":         {Data: []byte("{{ .host }}\n"), Mode: 0600},
	}

	_, err := NewSynchronizer(nil).Sync(src, dest, testVars(), false)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "bin", "deploy.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0755), info.Mode().Perm())
	assert.Equal(t, "#!/bin/sh\nssh 10.0.0.1\n", readString(t, filepath.Join(dest, "bin", "deploy.sh")))

	info, err = os.Stat(filepath.Join(dest, "hosts"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0600), info.Mode().Perm())
}

func TestSync_OnlyTemplates(t *testing.T) {
	dest := t.TempDir()

	res, err := NewSynchronizer(nil).Sync(testTree(), dest, testVars(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rendered)
	assert.Equal(t, 0, res.Copied)
	assert.Equal(t, 3, res.Skipped)
	assert.FileExists(t, filepath.Join(dest, "inventory.cfg"))
	assert.NoFileExists(t, filepath.Join(dest, "ansible.cfg"))
	assert.NoFileExists(t, filepath.Join(dest, "bin", "run.sh"))
	assert.DirExists(t, filepath.Join(dest, "bin"), "directories are mirrored in every pass")
}

func TestSync_Idempotent(t *testing.T) {
	dest := t.TempDir()
	s := NewSynchronizer(nil)

	_, err := s.Sync(testTree(), dest, testVars(), false)
	require.NoError(t, err)
	_, err = s.Sync(testTree(), dest, testVars(), false)
	require.NoError(t, err, "existing directories and files are not an error")

	assert.Equal(t, "host=10.0.0.1\n", readString(t, filepath.Join(dest, "inventory.cfg")))
}

func TestSync_OverwritesExistingFiles(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "ansible.cfg"), []byte("custom"), 0400))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "inventory.cfg"), []byte("stale"), 0644))

	_, err := NewSynchronizer(nil).Sync(testTree(), dest, testVars(), false)
	require.NoError(t, err)

	assert.Equal(t, "[defaults]\n", readString(t, filepath.Join(dest, "ansible.cfg")))
	assert.Equal(t, "host=10.0.0.1\n", readString(t, filepath.Join(dest, "inventory.cfg")))
}

func TestSync_MissingVariable(t *testing.T) {
	dest := t.TempDir()
	tree := fstest.MapFS{
		"a.cfg.tmpl": {Data: []byte("domain={{ .domain }}\n"), Mode: 0644},
	}

	_, err := NewSynchronizer(nil).Sync(tree, dest, deployment.VariableSet{"host": "x"}, true)

	require.ErrorIs(t, err, deployment.ErrMissingVariable)
	var missing *deployment.MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "domain", missing.Variable)
	assert.Equal(t, "a.cfg.tmpl", missing.Source)
	assert.NoFileExists(t, filepath.Join(dest, "a.cfg"))
}

func TestSync_AbortsOnFirstFailure(t *testing.T) {
	dest := t.TempDir()
	tree := fstest.MapFS{
		"a.tmpl": {Data: []byte("ok\n"), Mode: 0644},
		"b.tmpl": {Data: []byte("{{ .missing }}"), Mode: 0644},
		"c.tmpl": {Data: []byte("never\n"), Mode: 0644},
	}

	res, err := NewSynchronizer(nil).Sync(tree, dest, deployment.VariableSet{}, false)

	require.ErrorIs(t, err, deployment.ErrMissingVariable)
	assert.Equal(t, 1, res.Rendered)
	assert.FileExists(t, filepath.Join(dest, "a"), "files written before the failure remain")
	assert.NoFileExists(t, filepath.Join(dest, "c"))
}

func TestSync_IOError(t *testing.T) {
	dest := t.TempDir()
	// A file where a directory must be created.
	require.NoError(t, os.WriteFile(filepath.Join(dest, "bin"), []byte("x"), 0644))

	_, err := NewSynchronizer(nil).Sync(testTree(), dest, testVars(), false)

	require.ErrorIs(t, err, deployment.ErrSyncIO)
	var syncErr *deployment.SyncError
	require.ErrorAs(t, err, &syncErr)
}

func TestTemplates_EmbeddedTree(t *testing.T) {
	tree := Templates()

	for _, name := range []string{"ansible.cfg", "requirements.yml", "deployment.playbook.yml", "deployment.inventory.cfg.tmpl", "group_vars/all.yml.tmpl"} {
		_, err := fs.Stat(tree, name)
		assert.NoError(t, err, name)
	}
	assert.Contains(t, string(ExampleConfig()), "nodes:")
}

func TestSync_EmbeddedTree(t *testing.T) {
	dest := t.TempDir()
	vars := deployment.VariableSet{
		"git_url":        "git@example.org:app.git",
		"git_secret_url": "git@example.org:app.git",
		"project_dir":    "/project",
		"start_command":  "make start",
		"nodes": map[string]any{
			"vagrant": map[string]any{"host": "192.168.10.20", "port": 22, "user": "vagrant"},
		},
	}

	_, err := NewSynchronizer(nil).Sync(Templates(), dest, vars, false)
	require.NoError(t, err)

	assert.Contains(t, readString(t, filepath.Join(dest, "deployment.inventory.cfg")),
		"vagrant ansible_host=192.168.10.20 ansible_port=22 ansible_user=vagrant")

	info, err := os.Stat(filepath.Join(dest, "ansible.cfg"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0644), info.Mode().Perm(), "embedded files stay editable")
}
