package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Project ProjectConfig `mapstructure:"project"`
	Deploy  DeployConfig  `mapstructure:"deploy"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Log     LogConfig     `mapstructure:"log"`
}

// ProjectConfig locates the project and its role directory.
type ProjectConfig struct {
	Dir     string `mapstructure:"dir"`
	RoleDir string `mapstructure:"role_dir"` // relative to Dir unless absolute

	// TemplatesDir replaces the built-in role template tree when set.
	TemplatesDir string `mapstructure:"templates_dir"`
}

// DeployConfig holds the defaults of a deployment run. Command line flags win.
type DeployConfig struct {
	Playbook     string        `mapstructure:"playbook"`
	Inventory    string        `mapstructure:"inventory"`
	GitKey       string        `mapstructure:"git_key"`
	Branch       string        `mapstructure:"branch"`
	Profile      string        `mapstructure:"profile"`
	VaultBaseDir string        `mapstructure:"vault_base_dir"`
	AgentSettle  time.Duration `mapstructure:"agent_settle"`
}

// ToolsConfig names the external programs.
type ToolsConfig struct {
	AnsiblePlaybook string `mapstructure:"ansible_playbook"`
	AnsibleGalaxy   string `mapstructure:"ansible_galaxy"`
	SSHAgent        string `mapstructure:"ssh_agent"`
	SSHAdd          string `mapstructure:"ssh_add"`
	Vagrant         string `mapstructure:"vagrant"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProjectDir returns the absolute project directory.
func (c *Config) ProjectDir() (string, error) {
	dir, err := filepath.Abs(c.Project.Dir)
	if err != nil {
		return "", fmt.Errorf("resolve project directory: %w", err)
	}
	return dir, nil
}

// RoleDir returns the absolute role directory.
func (c *Config) RoleDir() (string, error) {
	if filepath.IsAbs(c.Project.RoleDir) {
		return c.Project.RoleDir, nil
	}
	projectDir, err := c.ProjectDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(projectDir, c.Project.RoleDir), nil
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("project.dir", ".")
	v.SetDefault("project.role_dir", deployment.DefaultRoleDir)
	v.SetDefault("project.templates_dir", "")
	v.SetDefault("deploy.playbook", deployment.DefaultPlaybook)
	v.SetDefault("deploy.inventory", deployment.DefaultInventory)
	v.SetDefault("deploy.git_key", "")
	v.SetDefault("deploy.branch", deployment.DefaultBranch)
	v.SetDefault("deploy.profile", "")
	v.SetDefault("deploy.vault_base_dir", "")
	v.SetDefault("deploy.agent_settle", "5s")
	v.SetDefault("tools.ansible_playbook", "ansible-playbook")
	v.SetDefault("tools.ansible_galaxy", "ansible-galaxy")
	v.SetDefault("tools.ssh_agent", "ssh-agent")
	v.SetDefault("tools.ssh_add", "ssh-add")
	v.SetDefault("tools.vagrant", "vagrant")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("HARBOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare aliases, checked after the prefixed names
	for key, alias := range map[string]string{
		"deploy.playbook":  "PLAYBOOK",
		"deploy.inventory": "INVENTORY",
		"deploy.git_key":   "GIT_KEY",
	} {
		envName := "HARBOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// ${HOME} and friends in the key path
	cfg.Deploy.GitKey = deployment.SubstituteVariables(cfg.Deploy.GitKey, deployment.EnvironMap(os.Environ()))

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w so that playbook output on stdout stays readable.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
