package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/pkg/alpm"
)

// NewDuCmd creates the du command.
func NewDuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "du [NAME...]",
		Short: "Show the disk usage of installed packages",
		Long:  "Sum the sizes of the files installed by each package that are still present on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandle(func(h *alpm.Handle) error {
				local, err := h.LocalDatabase()
				if err != nil {
					return err
				}
				pkgs, err := selectLocalPackages(local, args)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
				_, _ = fmt.Fprintln(tw, "PACKAGE NAME\tBYTES")
				var total uint64
				for _, pkg := range pkgs {
					size, err := pkg.SizeOnDisk()
					if err != nil {
						return fmt.Errorf("failed to measure %s: %w", pkg.Name(), err)
					}
					total += size
					_, _ = fmt.Fprintf(tw, "%s\t%d\n", pkg.Name(), size)
				}
				_, _ = fmt.Fprintf(tw, "total\t%d\n", total)
				return tw.Flush()
			})
		},
	}
}
