// Package config loads the deployment configuration document of a project.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artpar/harbor/internal/core/deployment"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Config
// =============================================================================

// Config is a loaded deployment configuration. Top-level keys keep the order
// in which they appear in the document. It is immutable after loading.
type Config struct {
	path   string
	keys   []string
	values map[string]any
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Keys returns the top-level keys in document order.
func (c *Config) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Get returns the value stored under key.
func (c *Config) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of top-level keys.
func (c *Config) Len() int {
	return len(c.keys)
}

// Parse decodes a deployment configuration document.
func Parse(path string, data []byte) (*Config, error) {
	cfg := &Config{path: path, values: make(map[string]any)}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", deployment.ErrConfigParse, path, err)
	}
	if len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: top level must be a mapping", deployment.ErrConfigParse, path)
	}

	if err := root.Decode(&cfg.values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", deployment.ErrConfigParse, path, err)
	}
	if cfg.values == nil {
		cfg.values = make(map[string]any)
	}

	seen := make(map[string]bool, len(cfg.values))
	for _, k := range mappingKeys(root) {
		if _, ok := cfg.values[k]; ok && !seen[k] {
			seen[k] = true
			cfg.keys = append(cfg.keys, k)
		}
	}

	return cfg, nil
}

// mappingKeys lists the keys of a mapping node in document order. Merge keys
// (<<) are replaced by the keys of the mappings they pull in.
func mappingKeys(n *yaml.Node) []string {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.SequenceNode:
		var keys []string
		for _, item := range n.Content {
			keys = append(keys, mappingKeys(item)...)
		}
		return keys
	case yaml.MappingNode:
		var keys []string
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			if keyNode.Tag == "!!merge" || (keyNode.Value == "<<" && keyNode.Style == 0) {
				keys = append(keys, mappingKeys(n.Content[i+1])...)
				continue
			}
			keys = append(keys, keyNode.Value)
		}
		return keys
	}
	return nil
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver loads the deployment configuration of one project directory and
// caches it for the lifetime of the resolver. Construct one per task run.
type Resolver struct {
	dir        string
	candidates []string
	cached     *Config
}

// NewResolver creates a resolver for the project directory dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{
		dir:        dir,
		candidates: deployment.ConfigFileCandidates,
	}
}

// Load returns the deployment configuration, reading it on the first call.
// Candidates are tried in order; the first existing file wins. A parse error in
// an existing file is returned as is, without falling back to the next candidate.
func (r *Resolver) Load() (*Config, error) {
	if r.cached != nil {
		return r.cached, nil
	}

	for _, name := range r.candidates {
		cfg, found, err := r.tryLoad(name)
		if err != nil {
			return nil, &deployment.ConfigError{Dir: r.dir, Candidates: r.candidates, Err: err}
		}
		if found {
			r.cached = cfg
			return cfg, nil
		}
	}

	return nil, &deployment.ConfigError{Dir: r.dir, Candidates: r.candidates, Err: deployment.ErrConfigNotFound}
}

// Values adapts Load to deployment.ConfigValues.
func (r *Resolver) Values() (deployment.ConfigValues, error) {
	cfg, err := r.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Resolver) tryLoad(name string) (*Config, bool, error) {
	path := filepath.Join(r.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}
