package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/jsonview/internal/cli/ui"
	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/migrate"
)

// NewApplyCommand creates the apply command
func NewApplyCommand(g *globalFlags) *cobra.Command {
	var (
		vf          viewFlags
		databaseURL string
		install     bool
		postgis     bool
		refresh     bool
		retry       = migrate.DefaultRetryConfig()
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create the view in the database",
		Long: `Plan the view and execute its statements in a single transaction.

When any statement fails the transaction is rolled back and the database is
left unchanged. Pass --attempts to retry deadlocks and lock timeouts caused
by concurrent activity on the source table. Use --install to create the
extraction functions first.`,
		Example: `  jsonview apply
  jsonview apply --replace --install
  jsonview apply --materialized --refresh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, plan, err := buildPlan(cmd, g, &vf)
			if err != nil {
				return err
			}
			if postgis && !install {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.Warning("--postgis has no effect without --install", g.noColor))
			}
			if databaseURL == "" {
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

			out := cmd.OutOrStdout()
			installer := migrate.NewInstaller(db, logger)
			if install {
				bundles := []extract.Bundle{extract.Core}
				if postgis {
					bundles = append(bundles, extract.PostGIS)
				}
				if err := installer.Install(ctx, bundles...); err != nil {
					return err
				}
				ui.WriteSuccess(out, "Installed extraction functions", g.noColor)
			} else if ok, err := installer.Installed(ctx, extract.Core); err == nil && !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.Warning("extraction functions are not installed; run jsonview install or pass --install", g.noColor))
			}

			executor := migrate.NewExecutor(db, logger)
			result, err := executor.ApplyWithRetry(ctx, plan, retry)
			if err != nil {
				return err
			}
			ui.WriteSuccess(out, fmt.Sprintf("Applied %d statements for %s in %s", result.Executed, plan.View.Name, result.Duration.Round(time.Millisecond)), g.noColor)

			if refresh && len(plan.Refresh()) > 0 {
				if err := executor.Refresh(ctx, plan); err != nil {
					return err
				}
				ui.WriteSuccess(out, fmt.Sprintf("Refreshed %d materialized views", len(plan.Refresh())), g.noColor)
			}
			return nil
		},
	}

	vf.register(cmd)
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "database URL (default $DATABASE_URL or database.url)")
	cmd.Flags().BoolVar(&install, "install", false, "install the extraction functions before applying")
	cmd.Flags().BoolVar(&postgis, "postgis", false, "with --install, also install the geopoint extractor")
	cmd.Flags().IntVar(&retry.MaxAttempts, "attempts", retry.MaxAttempts, "attempts when the transaction hits a deadlock or lock timeout (1 disables retries)")
	cmd.Flags().DurationVar(&retry.Timeout, "timeout", 0, "give up after this long, including retries (0 means no limit)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh materialized array relations after applying")

	return cmd
}
