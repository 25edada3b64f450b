package codegen

import (
	"strings"

	"github.com/conduit-lang/jsonview/internal/orm/extract"
)

// StatementKind classifies a planned statement
type StatementKind int

const (
	StatementDropMaterializedView StatementKind = iota
	StatementDropView
	StatementDropIndex
	StatementCreateView
	StatementCreateMaterializedView
	StatementCreateIndex
	StatementRefreshMaterializedView
	// StatementInstall is a statement of the extraction-function library
	StatementInstall
)

// String returns the string representation of the statement kind
func (k StatementKind) String() string {
	switch k {
	case StatementDropMaterializedView:
		return "drop-materialized-view"
	case StatementDropView:
		return "drop-view"
	case StatementDropIndex:
		return "drop-index"
	case StatementCreateView:
		return "create-view"
	case StatementCreateMaterializedView:
		return "create-materialized-view"
	case StatementCreateIndex:
		return "create-index"
	case StatementRefreshMaterializedView:
		return "refresh-materialized-view"
	case StatementInstall:
		return "install"
	default:
		return "unknown"
	}
}

// IsDrop reports whether the statement removes an object
func (k StatementKind) IsDrop() bool {
	return k == StatementDropMaterializedView || k == StatementDropView || k == StatementDropIndex
}

// Statement is one schema-definition statement of a plan
type Statement struct {
	Kind StatementKind
	// Target is the name of the object the statement creates or drops
	Target string
	SQL    string
}

// Column is a name and relational type of a view column
type Column struct {
	Name string
	Type string
}

// Relation is one relation created by a plan
type Relation struct {
	Name         string
	Materialized bool
	Body         string
	Columns      []Column
	Indexes      []IndexSpec
}

// Plan is the ordered output of ViewBuilder.Build. Statements must be executed
// in order; the caller owns the session and the transaction.
type Plan struct {
	View       ViewSpec
	Statements []Statement
	// Columns describes the primary view
	Columns []Column
	// Relations holds the primary view followed by its array relations
	Relations []Relation
}

// SQL returns the statements as one script
func (p *Plan) SQL() string {
	stmts := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		stmts[i] = s.SQL
	}
	return strings.Join(stmts, "\n\n")
}

// Filter returns the statements of the given kinds, in plan order
func (p *Plan) Filter(kinds ...StatementKind) []Statement {
	var out []Statement
	for _, s := range p.Statements {
		for _, k := range kinds {
			if s.Kind == k {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Indexes returns every index of every relation in the plan
func (p *Plan) Indexes() []IndexSpec {
	var out []IndexSpec
	for _, r := range p.Relations {
		out = append(out, r.Indexes...)
	}
	return out
}

// Refresh returns one REFRESH statement per materialized relation. They are
// not part of Statements; materialized relations are populated on creation.
func (p *Plan) Refresh() []Statement {
	ddl := NewDDLGenerator()

	var out []Statement
	for _, r := range p.Relations {
		if r.Materialized {
			out = append(out, Statement{Kind: StatementRefreshMaterializedView, Target: r.Name, SQL: ddl.GenerateRefresh(r.Name)})
		}
	}
	return out
}

// Project evaluates the primary view's flattened columns over one document
// with the reference extractors. The row id column is not included.
func (p *Plan) Project(doc any) map[string]any {
	row := make(map[string]any, len(p.Columns))
	for _, d := range p.View.Properties {
		v := extract.Extract(d.Extractor, doc, d.Path)
		row[d.Column] = v
		if !d.Extractor.Temporal() {
			continue
		}
		for _, part := range p.View.DateParts {
			row[DatePartColumn(d, part)] = datePartValue(v, part)
		}
	}
	return row
}

// ProjectArray evaluates the relation derived from arr over one document.
// One row is returned per array element.
func (p *Plan) ProjectArray(arr ArraySpec, doc any) []map[string]any {
	raw, ok := extract.Lookup(doc, arr.Path)
	if !ok {
		return nil
	}
	elems, ok := raw.([]any)
	if !ok {
		return nil
	}

	key := extract.Extract(arr.JoinKey.Extractor, doc, arr.JoinKey.Path)
	rows := make([]map[string]any, 0, len(elems))
	for i, elem := range elems {
		row := map[string]any{
			ParentColumnPrefix + arr.JoinColumn: key,
			OrdinalityColumn:                    int64(i + 1),
		}
		for _, d := range arr.Properties {
			v := extract.Extract(d.Extractor, elem, d.Path)
			row[d.Column] = v
			if !d.Extractor.Temporal() {
				continue
			}
			for _, part := range p.View.DateParts {
				row[DatePartColumn(d, part)] = datePartValue(v, part)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func datePartValue(v any, part string) any {
	f, ok := extract.DatePart(v, part)
	if !ok {
		return nil
	}
	return f
}
