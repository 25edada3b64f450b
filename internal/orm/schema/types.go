// Package schema provides the document schema model used to derive flattened views.
// A schema is a closed tree of Scalar, Object, Array and Composite nodes decoded from a
// JSON or YAML schema document, with the structural rules needed before any SQL is rendered.
package schema

import (
	"fmt"
)

// ScalarType represents the leaf value types a document property may declare
type ScalarType int

const (
	TypeString ScalarType = iota
	TypeInteger
	TypeNumber
	TypeBoolean
)

// String returns the schema keyword for the scalar type
func (s ScalarType) String() string {
	switch s {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// ParseScalarType converts a schema "type" keyword to a ScalarType
func ParseScalarType(s string) (ScalarType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "integer":
		return TypeInteger, nil
	case "number":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	default:
		return 0, fmt.Errorf("unknown scalar type: %s", s)
	}
}

// Formats understood on top of the scalar types.
const (
	FormatDecimal      = "decimal"
	FormatDateTime     = "date-time"
	FormatDateTimeNoTZ = "date-time-no-tz"
	FormatDate         = "date"
	FormatGeopoint     = "geopoint"
)

// Node is one node of a schema tree. The set of implementations is closed:
// *Scalar, *Object, *Array and *Composite.
type Node interface {
	node()
	// Kind names the node variant for error messages
	Kind() string
}

// Scalar is a leaf property with exactly one type
type Scalar struct {
	Type   ScalarType
	Format string
}

// Object is an ordered set of named properties
type Object struct {
	Properties []Property
	// IDProperty names the sibling scalar that joins array-derived rows back to
	// their parent. Required when any property is an Array.
	IDProperty string
}

// Property is a named child of an Object
type Property struct {
	Name string
	Node Node
}

// Array holds repeated sub-documents described by Items
type Array struct {
	Items Node
}

// Composite is a oneOf/allOf/anyOf container. It is carried through the tree
// but never interpreted: no columns are derived from its branches.
type Composite struct {
	Keyword  string
	Branches int
}

func (*Scalar) node()    {}
func (*Object) node()    {}
func (*Array) node()     {}
func (*Composite) node() {}

// Kind implements Node
func (*Scalar) Kind() string { return "scalar" }

// Kind implements Node
func (*Object) Kind() string { return "object" }

// Kind implements Node
func (*Array) Kind() string { return "array" }

// Kind implements Node
func (c *Composite) Kind() string { return c.Keyword }

// NewScalar creates a scalar node
func NewScalar(t ScalarType, format string) *Scalar {
	return &Scalar{Type: t, Format: format}
}

// NewObject creates an object node from properties in the given order
func NewObject(props ...Property) *Object {
	return &Object{Properties: props}
}

// NewArray creates an array node
func NewArray(items Node) *Array {
	return &Array{Items: items}
}

// Prop is shorthand for building a Property
func Prop(name string, n Node) Property {
	return Property{Name: name, Node: n}
}

// WithID sets the join property of an object and returns it
func (o *Object) WithID(name string) *Object {
	o.IDProperty = name
	return o
}

// Lookup returns the property with the given name
func (o *Object) Lookup(name string) (Node, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Node, true
		}
	}
	return nil, false
}

// String returns a compact representation of the scalar, e.g. "string(date-time)"
func (s *Scalar) String() string {
	if s.Format == "" {
		return s.Type.String()
	}
	return fmt.Sprintf("%s(%s)", s.Type, s.Format)
}

// ContainsArray reports whether n is, or has somewhere below it, an Array
func ContainsArray(n Node) bool {
	switch v := n.(type) {
	case *Array:
		return true
	case *Object:
		for _, p := range v.Properties {
			if ContainsArray(p.Node) {
				return true
			}
		}
	}
	return false
}

// JoinPath appends a property name to a dotted path
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
