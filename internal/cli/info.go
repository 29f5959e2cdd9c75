package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/alpmdb/pkg/alpm"
	"github.com/glorpus-work/alpmdb/pkg/config"
	"github.com/glorpus-work/alpmdb/pkg/db"
	"github.com/glorpus-work/alpmdb/pkg/platform"
)

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "info NAME",
		Short: "Show package details",
		Long:  "Show the details of an installed package, or of a package in a sync database with --repo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfigHandle(func(cfg *config.Config, h *alpm.Handle) error {
				database, err := selectDatabase(h, repo)
				if err != nil {
					return err
				}
				pkg, err := database.Lookup(args[0])
				if err != nil {
					return err
				}
				return printInfo(cmd.OutOrStdout(), database.Name(), cfg.Arch(), pkg)
			})
		},
	}

	cmd.Flags().StringVarP(&repo, "repo", "r", "", "Sync database to look the package up in")

	return cmd
}

func printInfo(w io.Writer, repo, arch string, pkg db.Package) error {
	tw := tabwriter.NewWriter(w, 0, 0, TabWidth, ' ', 0)
	row := func(key, value string) {
		if value == "" {
			value = "None"
		}
		_, _ = fmt.Fprintf(tw, "%s\t: %s\n", key, value)
	}
	list := func(key string, values []string) {
		row(key, strings.Join(values, "  "))
	}

	row("Repository", repo)
	row("Name", pkg.Name())
	row("Version", pkg.Version().String())
	row("Description", pkg.Description())
	pkgArch := pkg.Arch()
	if pkgArch != "" && !platform.Compatible(pkgArch, arch) {
		pkgArch = fmt.Sprintf("%s (incompatible with %s)", pkgArch, arch)
	}
	row("Architecture", pkgArch)
	row("URL", pkg.URL())
	list("Licenses", pkg.Licenses())
	list("Groups", pkg.Groups())
	list("Provides", pkg.Provides())
	list("Depends On", pkg.Depends())
	list("Optional Deps", pkg.OptionalDepends())
	list("Conflicts With", pkg.Conflicts())
	list("Replaces", pkg.Replaces())
	row("Packager", pkg.Packager())
	row("Build Date", formatDate(pkg.BuildDate()))

	switch p := pkg.(type) {
	case *db.LocalPackage:
		row("Install Date", formatDate(p.InstallDate()))
		if reason, ok := p.Reason(); ok {
			row("Install Reason", reason.String())
		}
		row("Installed Size", fmt.Sprintf("%d", p.Size()))
	case *db.SyncPackage:
		row("Download Size", fmt.Sprintf("%d", p.CompressedSize()))
		row("Installed Size", fmt.Sprintf("%d", p.InstalledSize()))
		row("Filename", p.Filename())
	}
	return tw.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123)
}
