package schema

import (
	"strings"
)

// Validate checks the structural rules of a schema tree:
//   - the root is an Object
//   - property names are unique, non-empty and contain no "."
//   - an Array's items are an Object and contain no further Array
//   - an Object holding an Array names a sibling Scalar as its id_property
func Validate(root Node) error {
	obj, ok := root.(*Object)
	if !ok {
		if root == nil {
			return &SchemaError{Message: "schema is empty"}
		}
		return &SchemaError{
			Message: "root schema must be an object, got " + root.Kind(),
			Hint:    `flattened views are built from {"type": "object", "properties": {...}}`,
		}
	}
	return validateObject(obj, "")
}

func validateObject(obj *Object, p string) error {
	seen := make(map[string]bool, len(obj.Properties))
	hasArray := false

	for _, prop := range obj.Properties {
		path := JoinPath(p, prop.Name)
		if prop.Name == "" {
			return schemaErrorf(p, "property with empty name")
		}
		if strings.Contains(prop.Name, ".") {
			return &SchemaError{
				Path:    path,
				Message: "property name contains '.'",
				Hint:    "dotted names would collide with nested property paths",
			}
		}
		if seen[prop.Name] {
			return schemaErrorf(path, "duplicate property")
		}
		seen[prop.Name] = true

		if err := validateNode(prop.Node, path); err != nil {
			return err
		}
		if _, isArray := prop.Node.(*Array); isArray {
			hasArray = true
		}
	}

	if hasArray {
		if obj.IDProperty == "" {
			return &SchemaError{
				Path:    displayPath(p),
				Message: "object contains an array property but declares no id_property",
				Hint:    "set id_property to a sibling scalar used to join array rows to their parent",
			}
		}
		idNode, ok := obj.Lookup(obj.IDProperty)
		if !ok {
			return schemaErrorf(displayPath(p), "id_property %q is not a property of this object", obj.IDProperty)
		}
		if _, ok := idNode.(*Scalar); !ok {
			return schemaErrorf(JoinPath(p, obj.IDProperty), "id_property must name a scalar, got %s", idNode.Kind())
		}
	}

	return nil
}

func validateNode(n Node, p string) error {
	switch v := n.(type) {
	case *Scalar:
		return nil
	case *Composite:
		return nil
	case *Object:
		return validateObject(v, p)
	case *Array:
		item, ok := v.Items.(*Object)
		if !ok {
			if v.Items == nil {
				return schemaErrorf(p, "array declares no items")
			}
			if _, nested := v.Items.(*Array); nested {
				return nestedArrayError(p)
			}
			return schemaErrorf(p, "array items must be objects, got %s", v.Items.Kind())
		}
		if ContainsArray(item) {
			return nestedArrayError(p)
		}
		return validateObject(item, p+"[]")
	case nil:
		return schemaErrorf(p, "missing schema")
	default:
		return schemaErrorf(p, "unknown schema node %T", n)
	}
}

func nestedArrayError(p string) *SchemaError {
	return &SchemaError{
		Path:    p,
		Message: "array items contain another array",
		Hint:    "only one level of array nesting can be flattened",
	}
}
