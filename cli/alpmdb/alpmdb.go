package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/internal/cli"
)

var (
	configPath   string
	rootPath     string
	databasePath string
	verbose      bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alpmdb",
		Short: "Inspect and synchronize pacman package databases",
		Long: `alpmdb reads the package databases of an ALPM system:
- local: list, inspect and validate installed packages
- sync: download repository databases from their mirrors
- tools: compare package versions`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().StringVar(&rootPath, "root", "", "root of the managed system (overrides the config)")
	cmd.PersistentFlags().StringVarP(&databasePath, "dbpath", "b", "", "database directory (overrides the config)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Set up CLI pkg variables
	cli.ConfigPath = &configPath
	cli.RootPath = &rootPath
	cli.DatabasePath = &databasePath
	cli.Verbose = &verbose

	cmd.AddCommand(
		cli.NewStatusCmd(),
		cli.NewListCmd(),
		cli.NewInfoCmd(),
		cli.NewValidateCmd(),
		cli.NewDuCmd(),
		cli.NewSyncCmd(),
		cli.NewVercmpCmd(),
		cli.NewConfigCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
