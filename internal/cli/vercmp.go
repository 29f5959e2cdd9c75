package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/pkg/version"
)

// Number of arguments expected by the vercmp command.
const vercmpArgs = 2

// NewVercmpCmd creates the vercmp command.
func NewVercmpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vercmp VERSION1 VERSION2",
		Short: "Compare two package versions",
		Long: `Compare two package versions and print -1 if VERSION1 is older, 0 if they
are equal and 1 if VERSION1 is newer.`,
		Args: cobra.ExactArgs(vercmpArgs),
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CompareStrings(args[0], args[1]))
		},
	}
}
