package schema

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports a structural problem in a schema document: an ambiguous or
// missing leaf type, a nested array, or a missing id_property.
type SchemaError struct {
	Path    string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	var b strings.Builder

	b.WriteString("schema error")
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// UnsupportedTypeError is returned for a (type, format) pair with no extraction function
type UnsupportedTypeError struct {
	Path   string
	Type   string
	Format string
}

// Error implements the error interface
func (e *UnsupportedTypeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("unsupported type at %s: %s", displayPath(e.Path), e.Type)
	}
	return fmt.Sprintf("unsupported type at %s: (%s, %s)", displayPath(e.Path), e.Type, e.Format)
}

func displayPath(p string) string {
	if p == "" {
		return "<root>"
	}
	return p
}

// IsSchemaError returns true if err is or wraps a *SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsUnsupportedType returns true if err is or wraps an *UnsupportedTypeError
func IsUnsupportedType(err error) bool {
	var ue *UnsupportedTypeError
	return errors.As(err, &ue)
}

func schemaErrorf(path, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...)}
}
