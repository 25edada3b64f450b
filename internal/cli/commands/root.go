package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/jsonview/internal/cli/ui"
	"github.com/conduit-lang/jsonview/internal/orm/codegen"
	"github.com/conduit-lang/jsonview/internal/orm/migrate"
	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand
type globalFlags struct {
	configPath string
	verbose    bool
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "jsonview",
		Short: "Flatten JSON documents into relational views",
		Long: color.CyanString(`jsonview - relational views over JSON documents

jsonview reads a JSON Schema describing the documents stored in a json or
jsonb column and plans the PostgreSQL views that expose them as columns.

Features:
  • One typed column per schema property
  • Array relations joined back to their parent
  • Partial expression indexes scoped to the view
  • Optional date-part columns and materialized array relations`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default ./jsonview.yml)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log every executed statement")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewPlanCommand(g))
	rootCmd.AddCommand(NewApplyCommand(g))
	rootCmd.AddCommand(NewInstallCommand(g))
	rootCmd.AddCommand(NewColumnsCommand(g))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the jsonview version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				titleColor.DisableColor()
			}
			out := cmd.OutOrStdout()

			for _, line := range [][2]string{
				{"jsonview version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				titleColor.Fprint(out, line[0])
				fmt.Fprintln(out, line[1])
			}
		},
	}
}

// newLogger returns a development logger when verbose, else a no-op logger
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		fmt.Fprintln(rootCmd.ErrOrStderr(), renderError(err, noColor))
		return err
	}
	return nil
}

// renderError formats err with the richest layout its type supports
func renderError(err error, noColor bool) string {
	var (
		schemaErr *schema.SchemaError
		optErr    *codegen.OptionError
		dbErr     *migrate.DatabaseError
	)

	switch {
	case errors.As(err, &schemaErr):
		problem := schemaErr.Message
		if schemaErr.Path != "" {
			problem = schemaErr.Path + ": " + problem
		}
		if schemaErr.Hint != "" {
			problem += " (" + schemaErr.Hint + ")"
		}
		return ui.SchemaError(problem, noColor)
	case schema.IsUnsupportedType(err):
		return ui.SchemaError(err.Error(), noColor)
	case errors.As(err, &optErr):
		var suggestions []string
		if optErr.Option == "extract_date_parts" {
			suggestions = ui.Suggest(optErr.Value, codegen.DateParts, 3)
		}
		return ui.ConfigError(err.Error(), suggestions, noColor)
	case errors.As(err, &dbErr):
		var hints []string
		if migrate.IsDuplicateObject(err) {
			hints = append(hints, "Recreate the view: jsonview apply --replace")
		}
		if migrate.IsUndefinedObject(err) {
			hints = append(hints, "Install the extraction functions: jsonview install")
		}
		return ui.ApplyError(err.Error(), dbErr.Statement.SQL, hints, noColor)
	case errors.Is(err, codegen.ErrInvalidRequest):
		return ui.ConfigError(err.Error(), nil, noColor)
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if noColor {
		errorColor.DisableColor()
	}
	return errorColor.Sprintf("Error: %v", err)
}
