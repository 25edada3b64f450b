package codegen

import (
	"fmt"

	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

// PropertyDescriptor describes one flattened scalar column
type PropertyDescriptor struct {
	// Path is the dotted, root-relative path in the document
	Path       string
	Type       schema.ScalarType
	Format     string
	ColumnType string
	Extractor  extract.Extractor
	// Column is the output column name; it equals Path
	Column string
}

// ArraySpec describes a secondary relation derived from an array of sub-documents
type ArraySpec struct {
	// Name is the relation name, <parent>_<path with dots as underscores>.
	// Set by the view builder.
	Name string
	// Path locates the array in the parent document
	Path string
	// IDProperty is the id_property declared by the enclosing object
	IDProperty string
	// JoinColumn is the parent column holding the join key
	JoinColumn string
	// JoinKey describes how the join key is extracted from the parent document
	JoinKey PropertyDescriptor
	// Properties are relative to one array element
	Properties []PropertyDescriptor
	// Materialized relations get one index per column. Plain array views get
	// none because their columns come from a lateral array iteration.
	Materialized bool
}

// Walker decomposes a schema tree into property descriptors
type Walker struct {
	types *TypeMapper
}

// NewWalker creates a new schema walker
func NewWalker(types *TypeMapper) *Walker {
	if types == nil {
		types = NewTypeMapper()
	}
	return &Walker{types: types}
}

// Walk validates root and returns its scalar descriptors and array specs in
// preorder. Paths are prefixed with prefix.
func (w *Walker) Walk(root schema.Node, prefix string) ([]PropertyDescriptor, []ArraySpec, error) {
	if err := schema.Validate(root); err != nil {
		return nil, nil, err
	}

	var (
		props  []PropertyDescriptor
		arrays []ArraySpec
		seen   = make(map[string]bool)
	)
	if err := w.walkObject(root.(*schema.Object), prefix, &props, &arrays, seen); err != nil {
		return nil, nil, err
	}
	return props, arrays, nil
}

func (w *Walker) walkObject(obj *schema.Object, prefix string, props *[]PropertyDescriptor, arrays *[]ArraySpec, seen map[string]bool) error {
	for _, prop := range obj.Properties {
		path := schema.JoinPath(prefix, prop.Name)

		switch n := prop.Node.(type) {
		case *schema.Object:
			if err := w.walkObject(n, path, props, arrays, seen); err != nil {
				return err
			}

		case *schema.Scalar:
			if seen[path] {
				return &schema.SchemaError{Path: path, Message: "duplicate property path"}
			}
			seen[path] = true

			d, err := w.describe(path, n)
			if err != nil {
				return err
			}
			*props = append(*props, d)

		case *schema.Array:
			spec, err := w.walkArray(obj, prefix, path, n)
			if err != nil {
				return err
			}
			*arrays = append(*arrays, spec)

		case *schema.Composite:
			// opaque: nothing is derived from oneOf/allOf/anyOf branches

		default:
			return &schema.SchemaError{Path: path, Message: fmt.Sprintf("unknown schema node %T", prop.Node)}
		}
	}
	return nil
}

// walkArray starts an independent walk over the array items. Item paths are
// relative to the element.
func (w *Walker) walkArray(parent *schema.Object, prefix, path string, arr *schema.Array) (ArraySpec, error) {
	if parent.IDProperty == "" {
		return ArraySpec{}, &schema.SchemaError{Path: path, Message: "enclosing object declares no id_property"}
	}
	idNode, ok := parent.Lookup(parent.IDProperty)
	if !ok {
		return ArraySpec{}, &schema.SchemaError{Path: path, Message: fmt.Sprintf("id_property %q not found", parent.IDProperty)}
	}
	idScalar, ok := idNode.(*schema.Scalar)
	if !ok {
		return ArraySpec{}, &schema.SchemaError{Path: path, Message: "id_property must name a scalar"}
	}

	joinColumn := schema.JoinPath(prefix, parent.IDProperty)
	joinKey, err := w.describe(joinColumn, idScalar)
	if err != nil {
		return ArraySpec{}, err
	}

	items, ok := arr.Items.(*schema.Object)
	if !ok {
		return ArraySpec{}, &schema.SchemaError{Path: path, Message: "array items must be objects"}
	}

	var (
		props  []PropertyDescriptor
		nested []ArraySpec
	)
	if err := w.walkObject(items, "", &props, &nested, make(map[string]bool)); err != nil {
		return ArraySpec{}, err
	}
	if len(nested) > 0 {
		return ArraySpec{}, &schema.SchemaError{Path: path, Message: "array items contain another array"}
	}

	return ArraySpec{
		Path:       path,
		IDProperty: parent.IDProperty,
		JoinColumn: joinColumn,
		JoinKey:    joinKey,
		Properties: props,
	}, nil
}

func (w *Walker) describe(path string, s *schema.Scalar) (PropertyDescriptor, error) {
	m, err := w.types.MapScalar(path, s)
	if err != nil {
		return PropertyDescriptor{}, err
	}
	return PropertyDescriptor{
		Path:       path,
		Type:       s.Type,
		Format:     s.Format,
		ColumnType: m.ColumnType,
		Extractor:  m.Extractor,
		Column:     path,
	}, nil
}
