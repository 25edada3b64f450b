package codegen

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/conduit-lang/jsonview/internal/orm/extract"
)

// ViewSpec is everything needed to render one flattened view
type ViewSpec struct {
	Name           string
	Table          string
	DocumentColumn string
	// KeyColumn is the source table's row identifier
	KeyColumn string
	// Predicate is the caller's row filter, used verbatim
	Predicate  string
	Properties []PropertyDescriptor
	Arrays     []ArraySpec
	// DateParts are the date_part fields added for temporal properties
	DateParts []string
}

// RowIDColumn is the output name of the synthesized row identifier
func (v *ViewSpec) RowIDColumn() string {
	return tableBaseName(v.Table) + "_" + v.KeyColumn
}

// Output column names used by array relations besides the item properties
const (
	ParentColumnPrefix = "parent."
	OrdinalityColumn   = "ordinality"

	itemAlias           = "item"
	itemValueColumn     = "item_value"
	itemOrdinalityAlias = "item_ordinality"
)

// Renderer renders view bodies and index expressions
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Call renders the extraction call for d over the document expression doc
func (r *Renderer) Call(doc string, d PropertyDescriptor) string {
	return fmt.Sprintf("%s(%s, %s)", d.Extractor.Name(), doc, pq.QuoteLiteral(d.Path))
}

// IndexExpression renders the expression indexed for d. It is the same call the
// view body selects, so the planner can match queries against the view.
func (r *Renderer) IndexExpression(spec *ViewSpec, d PropertyDescriptor) string {
	return r.Call(QuoteIdentifier(spec.DocumentColumn), d)
}

// DatePartExpression renders date_part(part, call). Zoned timestamps are read
// in UTC so the expression stays immutable and indexable.
func (r *Renderer) DatePartExpression(call string, d PropertyDescriptor, part string) string {
	if d.Extractor == extract.DateTime {
		call = fmt.Sprintf("(%s AT TIME ZONE 'UTC')", call)
	}
	return fmt.Sprintf("date_part(%s, %s)", pq.QuoteLiteral(part), call)
}

// DatePartColumn names the computed column for part of d
func DatePartColumn(d PropertyDescriptor, part string) string {
	return d.Column + "_" + part
}

// ViewBody renders the SELECT of the primary view
func (r *Renderer) ViewBody(spec *ViewSpec) string {
	doc := QuoteIdentifier(spec.DocumentColumn)

	items := []string{
		fmt.Sprintf("%s AS %s", QuoteIdentifier(spec.KeyColumn), QuoteIdentifier(spec.RowIDColumn())),
	}
	items = append(items, r.selectItems(doc, spec.Properties, spec.DateParts)...)

	return r.selectStatement(items, QuoteQualified(spec.Table), spec.Predicate)
}

// ArrayBody renders the SELECT of the relation derived from arr. Each array
// element becomes one row carrying the parent row id, the parent's join key
// and the element's position.
func (r *Renderer) ArrayBody(spec *ViewSpec, arr *ArraySpec) string {
	table := QuoteQualified(spec.Table)
	parentDoc := table + "." + QuoteIdentifier(spec.DocumentColumn)
	itemDoc := QuoteIdentifier(itemAlias) + "." + QuoteIdentifier(itemValueColumn)

	items := []string{
		fmt.Sprintf("%s.%s AS %s", table, QuoteIdentifier(spec.KeyColumn), QuoteIdentifier(spec.RowIDColumn())),
		fmt.Sprintf("%s AS %s", r.Call(parentDoc, arr.JoinKey), QuoteIdentifier(ParentColumnPrefix+arr.JoinColumn)),
		fmt.Sprintf("%s.%s AS %s", QuoteIdentifier(itemAlias), QuoteIdentifier(itemOrdinalityAlias), QuoteIdentifier(OrdinalityColumn)),
	}
	items = append(items, r.selectItems(itemDoc, arr.Properties, spec.DateParts)...)

	from := fmt.Sprintf("%s CROSS JOIN LATERAL %s(%s, %s) WITH ORDINALITY AS %s(%s, %s)",
		table,
		extract.ArrayItemsFunction,
		parentDoc,
		pq.QuoteLiteral(arr.Path),
		QuoteIdentifier(itemAlias),
		QuoteIdentifier(itemValueColumn),
		QuoteIdentifier(itemOrdinalityAlias),
	)

	return r.selectStatement(items, from, spec.Predicate)
}

func (r *Renderer) selectItems(doc string, props []PropertyDescriptor, dateParts []string) []string {
	items := make([]string, 0, len(props))
	for _, d := range props {
		items = append(items, fmt.Sprintf("%s AS %s", r.Call(doc, d), QuoteIdentifier(d.Column)))
	}
	for _, d := range props {
		if !d.Extractor.Temporal() {
			continue
		}
		for _, part := range dateParts {
			items = append(items, fmt.Sprintf("%s AS %s",
				r.DatePartExpression(r.Call(doc, d), d, part), QuoteIdentifier(DatePartColumn(d, part))))
		}
	}
	return items
}

func (r *Renderer) selectStatement(items []string, from, predicate string) string {
	var b strings.Builder

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(items, ",\n  "))
	b.WriteString("\nFROM ")
	b.WriteString(from)
	if p := strings.TrimSpace(predicate); p != "" {
		b.WriteString("\nWHERE ")
		b.WriteString(p)
	}

	return b.String()
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping internal quotes
func QuoteIdentifier(identifier string) string {
	return pq.QuoteIdentifier(identifier)
}

// QuoteQualified quotes a possibly schema-qualified name such as "public.forms"
func QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// tableBaseName strips any schema qualifier
func tableBaseName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// tableSchema returns the schema qualifier of name, if any
func tableSchema(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}
