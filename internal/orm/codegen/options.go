package codegen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidOption is returned when build options cannot be honoured
var ErrInvalidOption = errors.New("invalid option")

// DateParts lists the field names accepted by extract_date_parts
var DateParts = []string{
	"century", "day", "decade", "dow", "doy", "epoch", "hour", "isodow", "isoyear",
	"microseconds", "millennium", "milliseconds", "minute", "month", "quarter",
	"second", "week", "year",
}

// OptionError reports one rejected option value. It matches ErrInvalidOption
// under errors.Is.
type OptionError struct {
	Option  string
	Value   string
	Message string
}

// Error implements the error interface
func (e *OptionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidOption, e.Message)
}

// Unwrap returns ErrInvalidOption
func (e *OptionError) Unwrap() error {
	return ErrInvalidOption
}

var indexPrefixPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Options controls which statements a plan contains
type Options struct {
	// SkipIndexes suppresses the partial index per flattened column.
	// The zero value plans indexes.
	SkipIndexes bool `mapstructure:"skip_indexes"`
	// Replace drops the view and its array relations before recreating them
	Replace bool `mapstructure:"replace"`
	// DropExistingIndexes drops every synthesized index name before creating it
	DropExistingIndexes bool `mapstructure:"drop_existing_indexes"`
	// UseMaterializedView materializes array-derived relations. Plain array
	// views are never indexed because their columns come from a lateral
	// iteration that an expression index cannot reach.
	UseMaterializedView bool `mapstructure:"use_materialized_view"`
	// ExtractDateParts adds a <path>_<part> column per date or timestamp property
	ExtractDateParts []string `mapstructure:"extract_date_parts"`
	// IndexPrefix starts every synthesized index name
	IndexPrefix string `mapstructure:"index_prefix"`
}

// DefaultOptions returns the default build options
func DefaultOptions() Options {
	return Options{IndexPrefix: DefaultIndexPrefix}
}

// Validate checks the options and normalizes date part names
func (o *Options) Validate() error {
	if o.IndexPrefix == "" {
		o.IndexPrefix = DefaultIndexPrefix
	}
	if !indexPrefixPattern.MatchString(o.IndexPrefix) {
		return &OptionError{
			Option:  "index_prefix",
			Value:   o.IndexPrefix,
			Message: fmt.Sprintf("index_prefix %q must match %s", o.IndexPrefix, indexPrefixPattern),
		}
	}
	if limit := MaxIdentifierLength - minDigestLength; len(o.IndexPrefix) > limit {
		return &OptionError{
			Option:  "index_prefix",
			Value:   o.IndexPrefix,
			Message: fmt.Sprintf("index_prefix %q is longer than %d characters", o.IndexPrefix, limit),
		}
	}

	parts := make([]string, 0, len(o.ExtractDateParts))
	seen := make(map[string]bool, len(o.ExtractDateParts))
	for _, p := range o.ExtractDateParts {
		p = strings.ToLower(strings.TrimSpace(p))
		if !isDatePart(p) {
			return &OptionError{
				Option:  "extract_date_parts",
				Value:   p,
				Message: fmt.Sprintf("unknown date part %q (valid: %s)", p, strings.Join(DateParts, ", ")),
			}
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	o.ExtractDateParts = parts

	return nil
}

func isDatePart(p string) bool {
	for _, dp := range DateParts {
		if dp == p {
			return true
		}
	}
	return false
}
