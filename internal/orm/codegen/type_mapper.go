// Package codegen turns a document schema and a row filter into the DDL of a flattened
// view: a view over typed extraction calls, partial expression indexes backing each
// column, and secondary relations for arrays of sub-documents.
package codegen

import (
	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

// Mapping is the result of resolving a scalar (type, format) pair
type Mapping struct {
	Extractor  extract.Extractor
	ColumnType string
}

type typeKey struct {
	typ    schema.ScalarType
	format string
}

// mappings is the fixed table of supported leaves
var mappings = map[typeKey]extract.Extractor{
	{schema.TypeString, ""}:                        extract.String,
	{schema.TypeInteger, ""}:                       extract.Integer,
	{schema.TypeNumber, ""}:                        extract.Float,
	{schema.TypeString, schema.FormatDecimal}:      extract.Decimal,
	{schema.TypeBoolean, ""}:                       extract.Boolean,
	{schema.TypeString, schema.FormatDateTime}:     extract.DateTime,
	{schema.TypeString, schema.FormatDateTimeNoTZ}: extract.DateTimeNoTZ,
	{schema.TypeString, schema.FormatDate}:         extract.Date,
	{schema.TypeString, schema.FormatGeopoint}:     extract.Geopoint,
}

// TypeMapper maps schema leaf types to extraction functions and column types
type TypeMapper struct{}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// Map resolves a (type, format) pair. Pairs outside the table, including a
// known type with an unknown format, fail with *schema.UnsupportedTypeError.
func (tm *TypeMapper) Map(typ schema.ScalarType, format string) (Mapping, error) {
	e, ok := mappings[typeKey{typ, format}]
	if !ok {
		return Mapping{}, &schema.UnsupportedTypeError{Type: typ.String(), Format: format}
	}
	return Mapping{Extractor: e, ColumnType: e.ReturnType()}, nil
}

// MapScalar resolves a scalar node, attaching path to any error
func (tm *TypeMapper) MapScalar(path string, s *schema.Scalar) (Mapping, error) {
	m, err := tm.Map(s.Type, s.Format)
	if err != nil {
		return Mapping{}, &schema.UnsupportedTypeError{Path: path, Type: s.Type.String(), Format: s.Format}
	}
	return m, nil
}
