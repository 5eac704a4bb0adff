package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// =============================================================================
// Resolver Tests
// =============================================================================

func TestResolver_LoadsYAMLFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deployment.yaml", "domain: example.org\nreplicas: 2\n")

	cfg, err := NewResolver(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "deployment.yaml"), cfg.Path())
	v, ok := cfg.Get("domain")
	assert.True(t, ok)
	assert.Equal(t, "example.org", v)
	v, _ = cfg.Get("replicas")
	assert.Equal(t, 2, v)
}

func TestResolver_PrefersYML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deployment.yml", "source: yml\n")
	writeFile(t, dir, "deployment.yaml", "source: yaml\n")

	cfg, err := NewResolver(dir).Load()
	require.NoError(t, err)

	v, _ := cfg.Get("source")
	assert.Equal(t, "yml", v)
}

func TestResolver_NotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := NewResolver(dir).Load()

	require.ErrorIs(t, err, deployment.ErrConfigNotFound)
	var cfgErr *deployment.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, dir, cfgErr.Dir)
	assert.Equal(t, []string{"deployment.yml", "deployment.yaml"}, cfgErr.Candidates)
}

func TestResolver_ParseErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deployment.yml", "invalid: yaml: content: [[[")
	writeFile(t, dir, "deployment.yaml", "valid: true\n")

	_, err := NewResolver(dir).Load()

	require.ErrorIs(t, err, deployment.ErrConfigParse)
	assert.NotErrorIs(t, err, deployment.ErrConfigNotFound)
}

func TestResolver_Memoized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deployment.yml", "domain: example.org\n")

	r := NewResolver(dir)
	first, err := r.Load()
	require.NoError(t, err)

	// A second call must not touch the filesystem.
	require.NoError(t, os.Remove(filepath.Join(dir, "deployment.yml")))

	second, err := r.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolver_FailureNotCached(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir)

	_, err := r.Load()
	require.ErrorIs(t, err, deployment.ErrConfigNotFound)

	writeFile(t, dir, "deployment.yml", "domain: example.org\n")
	cfg, err := r.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Len())
}

func TestResolver_Values(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deployment.yml", "a: 1\n")

	values, err := NewResolver(dir).Values()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, values.Keys())
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_KeepsKeyOrder(t *testing.T) {
	cfg, err := Parse("deployment.yml", []byte("zeta: 1\nalpha: 2\nmid:\n  nested: [a, b]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cfg.Keys())
	v, _ := cfg.Get("mid")
	assert.Equal(t, map[string]any{"nested": []any{"a", "b"}}, v)
}

func TestParse_KeysIsACopy(t *testing.T) {
	cfg, err := Parse("deployment.yml", []byte("a: 1\nb: 2\n"))
	require.NoError(t, err)

	keys := cfg.Keys()
	keys[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, cfg.Keys())
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse("deployment.yml", []byte(""))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Len())
}

func TestParse_TopLevelMustBeMapping(t *testing.T) {
	_, err := Parse("deployment.yml", []byte("- a\n- b\n"))
	assert.ErrorIs(t, err, deployment.ErrConfigParse)
}

func TestParse_MergeKey(t *testing.T) {
	doc := "defaults: &d\n  project_dir: /srv/app\n  user: deploy\n<<: *d\nuser: root\n"

	cfg, err := Parse("deployment.yml", []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"defaults", "project_dir", "user"}, cfg.Keys())
	_, ok := cfg.Get("<<")
	assert.False(t, ok)
	v, ok := cfg.Get("project_dir")
	assert.True(t, ok)
	assert.Equal(t, "/srv/app", v)
	v, _ = cfg.Get("user")
	assert.Equal(t, "root", v)
}

func TestParse_MergeKeySequence(t *testing.T) {
	doc := "a: &a\n  x: 1\nb: &b\n  y: 2\n<<: [*a, *b]\n"

	cfg, err := Parse("deployment.yml", []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "x", "y"}, cfg.Keys())
	v, _ := cfg.Get("y")
	assert.Equal(t, 2, v)
}
