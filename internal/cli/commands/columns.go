package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/jsonview/internal/cli/ui"
	"github.com/conduit-lang/jsonview/internal/orm/codegen"
	"github.com/conduit-lang/jsonview/internal/orm/extract"
)

// NewColumnsCommand creates the columns command
func NewColumnsCommand(g *globalFlags) *cobra.Command {
	var (
		vf       viewFlags
		document string
	)

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List the columns of the view and its array relations",
		Long: `List the name and type of every column the view and its array relations
expose.

With --document, the columns are evaluated over a sample document with the same
rules the database functions follow, so missing paths and failed casts show as
NULL.`,
		Example: `  jsonview columns
  jsonview columns --document sample.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, plan, err := buildPlan(cmd, g, &vf)
			if err != nil {
				return err
			}

			var doc any
			if document != "" {
				data, err := os.ReadFile(document)
				if err != nil {
					return fmt.Errorf("failed to read document: %w", err)
				}
				if doc, err = extract.Decode(data); err != nil {
					return fmt.Errorf("failed to decode %s: %w", document, err)
				}
			}

			out := cmd.OutOrStdout()
			for i, rel := range plan.Relations {
				if i > 0 {
					fmt.Fprintln(out)
				}
				title := rel.Name
				if rel.Materialized {
					title += " (materialized)"
				}
				ui.Header(out, title, g.noColor)

				switch {
				case document == "":
					table := ui.NewTable(out, g.noColor, "column", "type")
					for _, c := range rel.Columns {
						table.AddRow(c.Name, c.Type)
					}
					table.Render()
				case i == 0:
					row := plan.Project(doc)
					table := ui.NewTable(out, g.noColor, "column", "type", "value")
					for _, c := range rel.Columns[1:] {
						table.AddRow(c.Name, c.Type, formatValue(row[c.Name]))
					}
					table.Render()
				default:
					renderArrayRows(cmd, g, plan, rel, doc)
				}
			}
			return nil
		},
	}

	vf.register(cmd)
	cmd.Flags().StringVarP(&document, "document", "d", "", "sample JSON document to evaluate")

	return cmd
}

// renderArrayRows prints one table row per element of the relation's array.
// The row id column is omitted since it comes from the source table.
func renderArrayRows(cmd *cobra.Command, g *globalFlags, plan *codegen.Plan, rel codegen.Relation, doc any) {
	out := cmd.OutOrStdout()

	var arr *codegen.ArraySpec
	for i := range plan.View.Arrays {
		if plan.View.Arrays[i].Name == rel.Name {
			arr = &plan.View.Arrays[i]
			break
		}
	}
	if arr == nil {
		return
	}

	cols := rel.Columns[1:]
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Name
	}

	rows := plan.ProjectArray(*arr, doc)
	if len(rows) == 0 {
		fmt.Fprintln(out, "(no rows)")
		return
	}

	table := ui.NewTable(out, g.noColor, headers...)
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = formatValue(row[c.Name])
		}
		table.AddRow(cells...)
	}
	table.Render()
}

// formatValue renders an extracted value the way psql would display it
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "t"
		}
		return "f"
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case orb.Point:
		return wkt.MarshalString(val)
	default:
		return fmt.Sprint(val)
	}
}
