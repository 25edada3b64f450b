package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Detail       string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message block:
//
//	✗ SCHEMA ERROR: object contains an array property but declares no id_property
//	   at order
//
//	   Did you mean: month?
//
//	   → Get help: jsonview plan --help
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header, body *color.Color
	symbol := "✗"
	switch opts.Level {
	case ErrorLevelWarning:
		header = color.New(color.FgYellow, color.Bold)
		body = color.New(color.FgYellow)
		symbol = "!"
	case ErrorLevelInfo:
		header = color.New(color.FgCyan, color.Bold)
		body = color.New(color.FgCyan)
		symbol = "i"
	default:
		header = color.New(color.FgRed, color.Bold)
		body = color.New(color.FgRed)
	}
	if opts.NoColor {
		header.DisableColor()
		body.DisableColor()
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Detail != "" {
		for _, line := range strings.Split(strings.TrimRight(opts.Detail, "\n"), "\n") {
			body.Fprintf(&b, "   %s\n", line)
		}
	}

	if len(opts.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to w
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success line
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// SchemaError formats a rejected schema document
func SchemaError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "schema error",
		Problem: message,
		HelpCommands: []string{
			"Inspect the flattened columns: jsonview columns",
			"Get help: jsonview plan --help",
		},
		NoColor: noColor,
	})
}

// ApplyError formats a statement the database rejected. hints are listed
// ahead of the default help commands.
func ApplyError(message, statement string, hints []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "apply failed",
		Problem:      message,
		Detail:       statement,
		HelpCommands: append(append([]string{}, hints...), "Review the statements: jsonview plan"),
		NoColor:      noColor,
	})
}

// ConfigError formats an invalid configuration
func ConfigError(message string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "configuration error",
		Problem:     message,
		Suggestions: suggestions,
		HelpCommands: []string{
			"View config: cat jsonview.yml",
			"Get help: jsonview --help",
		},
		NoColor: noColor,
	})
}

// Warning formats a warning
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}
