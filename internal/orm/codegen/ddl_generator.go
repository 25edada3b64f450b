package codegen

import (
	"fmt"
)

// DDLGenerator generates CREATE/DROP statements for flattened relations
type DDLGenerator struct{}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator() *DDLGenerator {
	return &DDLGenerator{}
}

// GenerateCreateView generates CREATE VIEW or CREATE MATERIALIZED VIEW
func (g *DDLGenerator) GenerateCreateView(name, body string, materialized bool) string {
	kind := "VIEW"
	if materialized {
		kind = "MATERIALIZED VIEW"
	}
	return fmt.Sprintf("CREATE %s %s AS\n%s;", kind, QuoteQualified(name), body)
}

// GenerateDropView generates DROP VIEW IF EXISTS for a plain or materialized view
func (g *DDLGenerator) GenerateDropView(name string, materialized bool) string {
	kind := "VIEW"
	if materialized {
		kind = "MATERIALIZED VIEW"
	}
	return fmt.Sprintf("DROP %s IF EXISTS %s;", kind, QuoteQualified(name))
}

// GenerateRefresh generates REFRESH MATERIALIZED VIEW
func (g *DDLGenerator) GenerateRefresh(name string) string {
	return fmt.Sprintf("REFRESH MATERIALIZED VIEW %s;", QuoteQualified(name))
}
