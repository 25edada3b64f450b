package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/jsonview/internal/cli/config"
	"github.com/conduit-lang/jsonview/internal/cli/ui"
	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/migrate"
)

// NewInstallCommand creates the install command
func NewInstallCommand(g *globalFlags) *cobra.Command {
	var (
		databaseURL string
		postgis     bool
		printOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the extraction functions",
		Long: `Create or replace the json_* extraction functions the views call.

The core functions need only PostgreSQL. --postgis adds json_geopoint, which
requires the PostGIS extension. Installing is idempotent.`,
		Example: `  jsonview install
  jsonview install --postgis
  jsonview install --print > functions.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundles := []extract.Bundle{extract.Core}
			if postgis {
				bundles = append(bundles, extract.PostGIS)
			}

			out := cmd.OutOrStdout()
			if printOnly {
				scripts := make([]string, len(bundles))
				for i, b := range bundles {
					scripts[i] = extract.LibrarySQL(b)
				}
				_, err := fmt.Fprintln(out, strings.Join(scripts, "\n\n"))
				return err
			}

			if databaseURL == "" {
				cfg, err := config.Load(g.configPath)
				if err != nil {
					return err
				}
				databaseURL = cfg.DatabaseURL()
			}

			ctx := cmd.Context()
			db, err := connect(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := newLogger(g.verbose)
			defer logger.Sync()

			if err := migrate.NewInstaller(db, logger).Install(ctx, bundles...); err != nil {
				return err
			}

			names := make([]string, len(bundles))
			for i, b := range bundles {
				names[i] = b.String()
			}
			ui.WriteSuccess(out, fmt.Sprintf("Installed %s extraction functions", strings.Join(names, " and ")), g.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "database URL (default $DATABASE_URL or database.url)")
	cmd.Flags().BoolVar(&postgis, "postgis", false, "also install the PostGIS geopoint extractor")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the statements instead of executing them")

	return cmd
}
