package extract

import (
	"fmt"
	"strings"
)

// Bundle selects a group of database functions to install
type Bundle int

const (
	// Core holds the extractors that need only stock PostgreSQL
	Core Bundle = iota
	// PostGIS holds the geometry extractors
	PostGIS
)

// String returns the bundle name
func (b Bundle) String() string {
	switch b {
	case Core:
		return "core"
	case PostGIS:
		return "postgis"
	default:
		return "unknown"
	}
}

// ArrayItemsFunction is the set-returning helper that iterates an array at a path
const ArrayItemsFunction = "json_array_items"

// documentTypes are the column types every function is overloaded for
var documentTypes = []string{"json", "jsonb"}

// Library returns the statements installing the functions of bundle b.
// Every function is IMMUTABLE so it can back an expression index, and yields
// NULL instead of raising on missing paths or failed casts.
func Library(b Bundle) []string {
	var stmts []string

	if b == PostGIS {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS postgis")
	}

	for _, docType := range documentTypes {
		for _, e := range All {
			if e.RequiresPostGIS() != (b == PostGIS) {
				continue
			}
			stmts = append(stmts, functionDefinition(e, docType))
		}
		if b == Core {
			stmts = append(stmts, arrayItemsDefinition(docType))
		}
	}

	return stmts
}

// LibrarySQL returns the bundle as one script
func LibrarySQL(b Bundle) string {
	return strings.Join(Library(b), ";\n\n") + ";\n"
}

// pathExpr is the json path operand built from the dotted path argument
const pathExpr = "string_to_array(path, '.')"

func functionDefinition(e Extractor, docType string) string {
	switch e {
	case String:
		return sqlFunction(e.Name(), docType, e.ReturnType(),
			fmt.Sprintf("SELECT data #>> %s", pathExpr))
	case Boolean:
		return sqlFunction(e.Name(), docType, e.ReturnType(),
			fmt.Sprintf("SELECT CASE WHEN %s_typeof(data #> %s) = 'boolean' THEN (data #>> %s)::boolean END",
				docType, pathExpr, pathExpr))
	case Integer, Float, Decimal, DateTime, DateTimeNoTZ, Date:
		return plpgsqlFunction(e.Name(), docType, e.ReturnType(), "",
			fmt.Sprintf("RETURN (data #>> %s)::%s;", pathExpr, castType(e)))
	case Geopoint:
		return plpgsqlFunction(e.Name(), docType, "geometry", "parts text[];", strings.Join([]string{
			fmt.Sprintf("parts := string_to_array(data #>> %s, ',');", pathExpr),
			"IF array_length(parts, 1) IS DISTINCT FROM 2 THEN",
			"    RETURN NULL;",
			"  END IF;",
			"  RETURN ST_SetSRID(ST_MakePoint(trim(parts[1])::double precision, trim(parts[2])::double precision), 4326);",
		}, "\n  "))
	default:
		return ""
	}
}

func castType(e Extractor) string {
	switch e {
	case Integer:
		return "integer"
	case Float:
		return "double precision"
	case Decimal:
		return "numeric"
	case DateTime:
		return "timestamptz"
	case DateTimeNoTZ:
		return "timestamp"
	case Date:
		return "date"
	default:
		return "text"
	}
}

func sqlFunction(name, docType, returns, body string) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s(data %s, path text) RETURNS %s AS $$
  %s
$$ LANGUAGE sql IMMUTABLE STRICT`, name, docType, returns, body)
}

func plpgsqlFunction(name, docType, returns, declare, body string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE OR REPLACE FUNCTION %s(data %s, path text) RETURNS %s AS $$\n", name, docType, returns)
	if declare != "" {
		fmt.Fprintf(&b, "DECLARE\n  %s\n", declare)
	}
	b.WriteString("BEGIN\n  ")
	b.WriteString(body)
	b.WriteString("\nEXCEPTION WHEN others THEN\n  RETURN NULL;\nEND;\n")
	b.WriteString("$$ LANGUAGE plpgsql IMMUTABLE STRICT")

	return b.String()
}

func arrayItemsDefinition(docType string) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION %[1]s(data %[2]s, path text) RETURNS SETOF %[2]s AS $$
  SELECT value FROM %[2]s_array_elements(
    CASE WHEN %[2]s_typeof(data #> %[3]s) = 'array'
      THEN data #> %[3]s
      ELSE '[]'::%[2]s
    END)
$$ LANGUAGE sql IMMUTABLE STRICT`, ArrayItemsFunction, docType, pathExpr)
}
