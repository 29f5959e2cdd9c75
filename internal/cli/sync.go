package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/alpm"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var (
		force       bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize sync databases",
		Long: `Synchronize the sync databases by downloading the repository archives
from the configured mirrors. Archives that did not change are not downloaded again
unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHandle(func(h *alpm.Handle) error {
				logger.Debug("Synchronizing sync databases...", logger.Fields{"count": len(h.SyncDatabases())})
				opts := alpm.SyncOptions{Force: force, Concurrency: concurrency}
				if err := h.SynchronizeAll(cmd.Context(), opts); err != nil {
					return fmt.Errorf("failed to sync repositories: %w", err)
				}
				logger.Success("Sync databases synchronized successfully")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download every database even if it is up to date")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of databases to synchronize in parallel (default: one at a time)")

	return cmd
}
