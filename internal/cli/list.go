package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/pkg/alpm"
	"github.com/glorpus-work/alpmdb/pkg/db"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var (
		nameFilter string
		repo       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages",
		Long: `List the packages of a database.

By default, shows all installed packages with name and version.
Use --repo to list a sync database and --name to filter packages by name.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHandle(func(h *alpm.Handle) error {
				return runList(cmd, h, repo, nameFilter)
			})
		},
	}

	cmd.Flags().StringVar(&nameFilter, "name", "", "Filter packages by name (partial match)")
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "Sync database to list instead of the local database")

	return cmd
}

func runList(cmd *cobra.Command, h *alpm.Handle, repo, nameFilter string) error {
	database, err := selectDatabase(h, repo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	found := 0
	err = database.Each(func(p db.Package) error {
		if nameFilter != "" && !strings.Contains(p.Name(), nameFilter) {
			return nil
		}
		if found == 0 {
			_, _ = fmt.Fprintln(tw, "PACKAGE NAME\tVERSION\tDESCRIPTION")
		}
		found++
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name(), p.Version(), truncate(p.Description(), MaxDescriptionLength))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", database.Name(), err)
	}
	if found == 0 {
		_, _ = fmt.Fprintln(out, "No packages found")
		return nil
	}
	return tw.Flush()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
