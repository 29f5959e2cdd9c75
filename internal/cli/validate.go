package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/alpm"
	"github.com/glorpus-work/alpmdb/pkg/db"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [NAME...]",
		Short: "Check installed files against the database",
		Long: `Compare the files of installed packages with what the local database recorded
for them. Without arguments every installed package is checked.`,
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
				total, err := validatePackages(cmd.OutOrStdout(), pkgs)
				if err != nil {
					return err
				}
				if total > 0 {
					return fmt.Errorf("%d problems found in %d packages", total, len(pkgs))
				}
				logger.Success("All files match the database", logger.Fields{"packages": len(pkgs)})
				return nil
			})
		},
	}
}

func validatePackages(w io.Writer, pkgs []*db.LocalPackage) (int, error) {
	total := 0
	for _, pkg := range pkgs {
		problems, err := pkg.Validate()
		if err != nil {
			return total, fmt.Errorf("failed to validate %s: %w", pkg.Name(), err)
		}
		for _, p := range problems {
			_, _ = fmt.Fprintf(w, "%s: %s\n", pkg.Name(), p.Error())
		}
		total += len(problems)
	}
	return total, nil
}

// selectLocalPackages returns the named packages, or every package for no names.
func selectLocalPackages(local *db.LocalDatabase, names []string) ([]*db.LocalPackage, error) {
	var pkgs []*db.LocalPackage
	if len(names) == 0 {
		err := local.Packages(func(p *db.LocalPackage) error {
			pkgs = append(pkgs, p)
			return nil
		})
		return pkgs, err
	}
	for _, name := range names {
		pkg, err := local.Latest(name)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}
