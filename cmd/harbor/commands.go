package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/artpar/harbor/internal/engine"
	"github.com/artpar/harbor/internal/shell/config"
	"github.com/artpar/harbor/internal/shell/gitremote"
	"github.com/artpar/harbor/internal/shell/rolesync"
	"github.com/artpar/harbor/internal/shell/runner"
	"github.com/artpar/harbor/internal/shell/sshagent"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// =============================================================================
// Root Command
// =============================================================================

type rootOpts struct {
	configPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer

	cfg    *Config
	logger *slog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOpts{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:               "harbor",
		Short:             "Deploy a project to remote hosts with Ansible",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.load,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "harbor.yaml", "path to the harbor configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")

	deploymentCmd := &cobra.Command{
		Use:   "deployment",
		Short: "Deploy the project and manage its deployment role",
	}
	deploymentCmd.AddCommand(
		newApply(opts).Command(),
		newFilesCommand(opts),
		newCreateExampleCommand(opts),
		newVagrantCommand(opts),
	)

	cmd.AddCommand(deploymentCmd, newVersionCommand())
	return cmd
}

// load reads the configuration and sets up logging before any subcommand runs.
func (o *rootOpts) load(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfigLoad, err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg
	o.logger = SetupLogger(cfg, o.stderr)
	return nil
}

// executor wires an engine.Executor for one invocation.
func (o *rootOpts) executor() (*engine.Executor, error) {
	projectDir, err := o.cfg.ProjectDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}
	roleDir, err := o.cfg.RoleDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfigLoad, err)
	}

	var source fs.FS
	if dir := o.cfg.Project.TemplatesDir; dir != "" {
		source = os.DirFS(absJoin(projectDir, dir))
	}

	execRunner := runner.NewExecRunner(o.logger)
	execRunner.Stdout = o.stdout
	execRunner.Stderr = o.stderr

	preparer := rolesync.NewPreparer(rolesync.PreparerConfig{
		RoleDir:       roleDir,
		Source:        source,
		Version:       Version,
		Config:        config.NewResolver(projectDir),
		Remote:        gitremote.Lookup(projectDir),
		Runner:        execRunner,
		GalaxyProgram: o.cfg.Tools.AnsibleGalaxy,
	}, o.logger)

	agent := sshagent.New(sshagent.Options{
		AgentProgram: o.cfg.Tools.SSHAgent,
		AddProgram:   o.cfg.Tools.SSHAdd,
		Settle:       o.cfg.Deploy.AgentSettle,
	}, o.logger)

	vaultBaseDir := ""
	if o.cfg.Deploy.VaultBaseDir != "" {
		vaultBaseDir = absJoin(projectDir, o.cfg.Deploy.VaultBaseDir)
	}

	return engine.NewExecutor(engine.ExecutorConfig{
		ProjectDir:      projectDir,
		Preparer:        preparer,
		Runner:          execRunner,
		Agent:           engine.SSHAgent(agent),
		PlaybookProgram: o.cfg.Tools.AnsiblePlaybook,
		VagrantProgram:  o.cfg.Tools.Vagrant,
		VaultBaseDir:    vaultBaseDir,
	}, o.logger), nil
}

func absJoin(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// =============================================================================
// deployment apply
// =============================================================================

type applyOpts struct {
	*rootOpts
	playbook       string
	inventory      string
	gitKey         string
	vaultPasswords string
	branch         string
	profile        string
	debug          bool
}

func newApply(root *rootOpts) *applyOpts {
	return &applyOpts{rootOpts: root}
}

func (opts *applyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run the deployment playbook against the inventory",
		Example: `# Deploy the release branch using a dedicated key
harbor deployment apply --git-key=~/.ssh/deploy_rsa --branch=release

# Decrypt vaults with a password file and a literal password
harbor deployment apply -V 'vault.txt||s3cret'`,
		Args: cobra.NoArgs,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.playbook, "playbook", "p", deployment.DefaultPlaybook,
		"playbook to run, relative to the role directory (env: PLAYBOOK)")
	cmd.Flags().StringVarP(&opts.inventory, "inventory", "i", deployment.DefaultInventory,
		"inventory file, relative to the role directory (env: INVENTORY)")
	cmd.Flags().StringVarP(&opts.gitKey, "git-key", "k", "",
		"private key loaded into a temporary ssh-agent for the run (env: GIT_KEY)")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false,
		"run ansible-playbook with -vv")
	cmd.Flags().StringVarP(&opts.vaultPasswords, "vault-passwords", "V", "",
		"vault password files or passwords separated by \"||\"")
	cmd.Flags().StringVarP(&opts.branch, "branch", "b", deployment.DefaultBranch,
		"git branch to deploy")
	cmd.Flags().StringVar(&opts.profile, "profile", "",
		"deployment profile passed to the playbook as deployment_profile")
	return cmd
}

// options merges the flags with the configured defaults. Flags set on the
// command line win.
func (opts *applyOpts) options(flags *pflag.FlagSet, cfg DeployConfig) deployment.ApplyOptions {
	pick := func(name, flagValue, configValue string) string {
		if flags.Changed(name) {
			return flagValue
		}
		return configValue
	}
	return deployment.ApplyOptions{
		Playbook:       pick("playbook", opts.playbook, cfg.Playbook),
		Inventory:      pick("inventory", opts.inventory, cfg.Inventory),
		PrivateKeyPath: pick("git-key", opts.gitKey, cfg.GitKey),
		Branch:         pick("branch", opts.branch, cfg.Branch),
		Profile:        pick("profile", opts.profile, cfg.Profile),
		Debug:          opts.debug,
		VaultPasswords: deployment.SplitVaultPasswords(opts.vaultPasswords),
	}
}

func (opts *applyOpts) RunE(cmd *cobra.Command, args []string) error {
	executor, err := opts.executor()
	if err != nil {
		return err
	}
	ok, err := executor.Apply(cmd.Context(), opts.options(cmd.Flags(), opts.cfg.Deploy))
	if err != nil {
		return err
	}
	if !ok {
		return errDeploymentFailed
	}
	return nil
}

// =============================================================================
// deployment files update
// =============================================================================

func newFilesCommand(root *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the files of the deployment role",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Rewrite the deployment role from the templates and reinstall roles",
		Long: `Rewrite every file of the deployment role from the templates, including
files that were changed by hand, then reinstall the roles listed in
requirements.yml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := root.executor()
			if err != nil {
				return err
			}
			_, err = executor.UpdateFiles(cmd.Context())
			return err
		},
	})
	return cmd
}

// =============================================================================
// deployment create-example
// =============================================================================

func newCreateExampleCommand(root *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "create-example",
		Short: "Create an example deployment.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := root.executor()
			if err != nil {
				return err
			}
			path, err := executor.CreateExample()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File %q created.\n", path)
			fmt.Fprintln(out, "The example targets the Vagrant test machine:")
			fmt.Fprintln(out, `  harbor deployment vagrant -c "up --provision"   bring the machine up`)
			fmt.Fprintln(out, "  harbor deployment files update                  install the deployment role")
			fmt.Fprintln(out, "  harbor deployment apply --git-key=~/.ssh/id_rsa  perform a test deployment")
			return nil
		},
	}
}

// =============================================================================
// deployment vagrant
// =============================================================================

func newVagrantCommand(root *rootOpts) *cobra.Command {
	var commandLine string
	cmd := &cobra.Command{
		Use:     "vagrant",
		Short:   "Control the Vagrant test machine",
		Example: `harbor deployment vagrant -c "up --provision"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, err := root.executor()
			if err != nil {
				return err
			}
			ok, err := executor.Vagrant(cmd.Context(), commandLine)
			if err != nil {
				return err
			}
			if !ok {
				return errVagrantFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&commandLine, "cmd", "c", "", "vagrant command line")
	_ = cmd.MarkFlagRequired("cmd")
	return cmd
}

// =============================================================================
// version
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of harbor",
		Args:  cobra.NoArgs,
		// No configuration needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "harbor %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
