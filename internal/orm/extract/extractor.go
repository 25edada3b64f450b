// Package extract defines the extraction functions that turn a dotted path into a typed
// value of a semi-structured document. The SQL functions installed in the database and the
// Go reference implementations here share one contract: walk the path segment by segment and
// yield nil on any missing segment, non-container intermediate or failed coercion. They never
// return an error.
package extract

import "fmt"

// Extractor identifies one extraction function
type Extractor int

const (
	String Extractor = iota
	Integer
	Float
	Decimal
	Boolean
	DateTime
	DateTimeNoTZ
	Date
	Geopoint
)

// All lists every extractor in table order
var All = []Extractor{String, Integer, Float, Decimal, Boolean, DateTime, DateTimeNoTZ, Date, Geopoint}

// Name returns the SQL function name of the extractor
func (e Extractor) Name() string {
	switch e {
	case String:
		return "json_string"
	case Integer:
		return "json_int"
	case Float:
		return "json_float"
	case Decimal:
		return "json_decimal"
	case Boolean:
		return "json_bool"
	case DateTime:
		return "json_datetime"
	case DateTimeNoTZ:
		return "json_datetime_no_tz"
	case Date:
		return "json_date"
	case Geopoint:
		return "json_geopoint"
	default:
		return fmt.Sprintf("json_unknown_%d", int(e))
	}
}

// String implements fmt.Stringer
func (e Extractor) String() string {
	return e.Name()
}

// ReturnType is the SQL type the installed function returns
func (e Extractor) ReturnType() string {
	switch e {
	case String:
		return "text"
	case Integer:
		return "integer"
	case Float:
		return "double precision"
	case Decimal:
		return "numeric"
	case Boolean:
		return "boolean"
	case DateTime:
		return "timestamp with time zone"
	case DateTimeNoTZ:
		return "timestamp without time zone"
	case Date:
		return "date"
	case Geopoint:
		return "geometry(Point, 4326)"
	default:
		return "text"
	}
}

// Temporal reports whether the extractor yields a date or timestamp
func (e Extractor) Temporal() bool {
	return e == DateTime || e == DateTimeNoTZ || e == Date
}

// RequiresPostGIS reports whether the installed function depends on PostGIS
func (e Extractor) RequiresPostGIS() bool {
	return e == Geopoint
}
