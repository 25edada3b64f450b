package codegen

import (
	"fmt"
	"strings"
)

// Index access methods
const (
	MethodBTree = "btree"
	MethodGiST  = "gist"
)

// IndexSpec describes one index backing a flattened column
type IndexSpec struct {
	// Name is synthesized from Predicate and the index fingerprint expression
	Name string
	// Table is the (possibly schema-qualified) relation the index is built on
	Table string
	// Expression is the indexed expression as it appears in CREATE INDEX
	Expression string
	// Predicate restricts the index to the view's rows; empty for indexes on
	// materialized relations, which are already filtered
	Predicate string
	Method    string
	// Column is the view column the index backs
	Column string
}

// IndexGenerator generates CREATE INDEX and DROP INDEX statements
type IndexGenerator struct{}

// NewIndexGenerator creates a new index generator
func NewIndexGenerator() *IndexGenerator {
	return &IndexGenerator{}
}

// GenerateCreateIndex generates an idempotent CREATE INDEX. An existing index
// with the same synthesized name already has this exact definition.
func (g *IndexGenerator) GenerateCreateIndex(spec IndexSpec) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s", QuoteIdentifier(spec.Name), QuoteQualified(spec.Table))
	if spec.Method != "" && spec.Method != MethodBTree {
		fmt.Fprintf(&b, " USING %s", spec.Method)
	}
	fmt.Fprintf(&b, " ((%s))", spec.Expression)
	if p := strings.TrimSpace(spec.Predicate); p != "" {
		fmt.Fprintf(&b, " WHERE %s", p)
	}
	b.WriteString(";")

	return b.String()
}

// GenerateDropIndex generates DROP INDEX IF EXISTS. Indexes live in their
// table's schema, so the name is qualified the same way.
func (g *IndexGenerator) GenerateDropIndex(spec IndexSpec) string {
	name := QuoteIdentifier(spec.Name)
	if s := tableSchema(spec.Table); s != "" {
		name = QuoteQualified(s) + "." + name
	}
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", name)
}
