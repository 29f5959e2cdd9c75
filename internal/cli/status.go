package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/pkg/alpm"
	"github.com/glorpus-work/alpmdb/pkg/db"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every database",
		Long:  "Show whether the local database and each configured sync database is present and valid, and how many packages it holds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHandle(func(h *alpm.Handle) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
				_, _ = fmt.Fprintln(tw, "DATABASE\tSTATUS\tPACKAGES\tPATH")
				for _, database := range h.Databases() {
					status, err := database.Status()
					if err != nil {
						return err
					}
					count := "-"
					if status == db.StatusValid {
						n, err := database.Count()
						if err != nil {
							return err
						}
						count = fmt.Sprintf("%d", n)
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", database.Name(), status, count, database.Path())
				}
				return tw.Flush()
			})
		},
	}
}
