package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/config"
	"github.com/glorpus-work/alpmdb/pkg/errors"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and modify the alpmdb configuration: paths, signature levels and the
sync repositories with their mirrors.`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigInitCmd(),
		newConfigRepoCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configuration",
		Long:  "Show the settings, the effective database path and architecture, and the repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Long: `Print one configuration value. Repository values are addressed as
repositories.NAME.servers, repositories.NAME.usage and repositories.NAME.signature_level.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.GetValue(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set one configuration value. The whole configuration is validated before it is
written, so an unknown line ending, signature level or repository usage is rejected.
List values (repositories.NAME.servers, repositories.NAME.usage) are comma separated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			return updateConfig(func(cfg *config.Config) error {
				return cfg.SetValue(key, value)
			}, logger.Fields{"key": key, "value": value})
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		arch  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			configPath := getConfigPath()
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%w at %s (use --force to overwrite)", errors.ErrConfigFileExists, configPath)
			}

			cfg := config.DefaultConfig()
			cfg.Architecture = arch
			if err := cfg.SaveConfig(configPath); err != nil {
				return fmt.Errorf("failed to save default configuration: %w", err)
			}
			logger.Success("Configuration file created", logger.Fields{"path": configPath})
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().StringVar(&arch, "architecture", "", "Architecture substituted for $arch in mirror URLs (default: detected)")

	return cmd
}

func newConfigRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Add or remove sync repositories",
	}

	var (
		level string
		usage []string
	)
	add := &cobra.Command{
		Use:   "add NAME SERVER...",
		Short: "Add a sync repository",
		Long: `Add a sync repository with one or more mirrors. Mirror URLs may contain $repo
and $arch, which are replaced when the repository is registered.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			return updateConfig(func(cfg *config.Config) error {
				if err := cfg.AddRepository(name, args[1:]...); err != nil {
					return err
				}
				repo := cfg.GetRepository(name)
				repo.SignatureLevel = level
				repo.Usage = usage
				return nil
			}, logger.Fields{"repository": name})
		},
	}
	add.Flags().StringVar(&level, "signature-level", "", "Signature level of the repository (default: inherit)")
	add.Flags().StringSliceVar(&usage, "usage", nil, "Operations the repository is used for (default: all)")

	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a sync repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			return updateConfig(func(cfg *config.Config) error {
				if !cfg.RemoveRepository(name) {
					return fmt.Errorf("unknown repository: %s", name)
				}
				return nil
			}, logger.Fields{"repository": name})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

// updateConfig loads the configuration, applies fn, validates the result and saves it.
// Nothing is written when fn or validation fails. Command line path overrides are not saved.
func updateConfig(fn func(cfg *config.Config) error, fields logger.Fields) error {
	cfg, err := loadConfigFile()
	if err != nil {
		return err
	}
	setupLogging(cfg)
	if err := fn(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	configPath := getConfigPath()
	if err := cfg.SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	logger.Success("Configuration updated", fields)
	return nil
}

func printConfig(out io.Writer, cfg *config.Config) error {
	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SETTING\tVALUE")

	settings := cfg.ToMap()
	settings["database_path"] = cfg.GetDatabasePath()
	settings["architecture"] = cfg.Arch()
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", key, settings[key])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\nRepositories (%d):\n", len(cfg.Repositories))
	if len(cfg.Repositories) == 0 {
		return nil
	}
	tw = tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSIGNATURES\tUSAGE\tSERVERS")
	for _, repo := range cfg.Repositories {
		level, err := repo.Level()
		if err != nil {
			return err
		}
		usage, err := repo.DatabaseUsage()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", repo.Name, level, usage,
			strings.Join(repo.ExpandedServers(cfg.Arch()), " "))
	}
	return tw.Flush()
}
