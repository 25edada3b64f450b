package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/jsonview/internal/cli/ui"
)

// NewPlanCommand creates the plan command
func NewPlanCommand(g *globalFlags) *cobra.Command {
	var (
		vf     viewFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the statements that create the view",
		Long: `Plan the view described by the config file and print its statements.

Nothing is sent to the database. Statements are printed in execution order,
separated by blank lines.`,
		Example: `  jsonview plan
  jsonview plan --schema form_7.json --name form_7 --table forms --predicate '"form_id" = 7'
  jsonview plan --materialized --date-parts year,month -o form_7.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, plan, err := buildPlan(cmd, g, &vf)
			if err != nil {
				return err
			}

			script := plan.SQL() + "\n"
			if output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), script)
				return err
			}

			if err := os.WriteFile(output, []byte(script), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Wrote %d statements to %s", len(plan.Statements), output), g.noColor)
			return nil
		},
	}

	vf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the script to a file instead of stdout")

	return cmd
}
