package schema

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Composite keywords accepted as opaque pass-through containers
var compositeKeywords = []string{"oneOf", "allOf", "anyOf"}

// Decode parses a JSON or YAML schema document into a schema tree.
// Property order follows the document. The result is not validated; see Validate.
func Decode(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &SchemaError{Message: fmt.Sprintf("malformed schema document: %v", err)}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, &SchemaError{Message: "empty schema document"}
	}
	return decodeNode(doc.Content[0], "")
}

// Parse decodes and validates a schema document
func Parse(data []byte) (*Object, error) {
	n, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	return n.(*Object), nil
}

// LoadFile reads and parses a schema document from fsys.
// Files ending in .json, .yaml or .yml are accepted.
func LoadFile(fsys fs.FS, name string) (*Object, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("schema file %s: format not supported", name)
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", name, err)
	}

	return Parse(data)
}

func decodeNode(n *yaml.Node, p string) (Node, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil, schemaErrorf(p, "schema node must be a mapping, got %s", kindName(n))
	}

	keys, err := mappingKeys(n, p)
	if err != nil {
		return nil, err
	}

	typeName, err := declaredType(keys["type"], p)
	if err != nil {
		return nil, err
	}

	if typeName == "" {
		switch {
		case keys["properties"] != nil:
			typeName = "object"
		case hasComposite(keys):
			return decodeComposite(keys), nil
		default:
			return nil, &SchemaError{
				Path:    p,
				Message: "missing type",
				Hint:    `every leaf property must declare exactly one "type"`,
			}
		}
	}

	switch typeName {
	case "object":
		return decodeObject(keys, p)
	case "array":
		items := keys["items"]
		if items == nil {
			return nil, schemaErrorf(p, "array declares no items")
		}
		item, err := decodeNode(items, p+"[]")
		if err != nil {
			return nil, err
		}
		return NewArray(item), nil
	case "any":
		return nil, schemaErrorf(p, `type "any" is ambiguous`)
	}

	t, err := ParseScalarType(typeName)
	if err != nil {
		format, _ := scalarValue(keys["format"])
		return nil, &UnsupportedTypeError{Path: p, Type: typeName, Format: format}
	}

	format := ""
	if f := keys["format"]; f != nil {
		v, ok := scalarValue(f)
		if !ok {
			return nil, schemaErrorf(p, "format must be a string")
		}
		format = v
	}

	return NewScalar(t, format), nil
}

func decodeObject(keys map[string]*yaml.Node, p string) (Node, error) {
	obj := &Object{}

	if id := keys["id_property"]; id != nil {
		v, ok := scalarValue(id)
		if !ok || v == "" {
			return nil, schemaErrorf(p, "id_property must be a property name")
		}
		obj.IDProperty = v
	}

	props := keys["properties"]
	if props == nil {
		if hasComposite(keys) {
			// the combined branches stay uninterpreted
			return obj, nil
		}
		return nil, schemaErrorf(p, "object declares no properties")
	}
	if props.Kind == yaml.AliasNode {
		props = props.Alias
	}
	if props.Kind != yaml.MappingNode {
		return nil, schemaErrorf(p, "properties must be a mapping")
	}

	for i := 0; i+1 < len(props.Content); i += 2 {
		name := props.Content[i].Value
		if _, exists := obj.Lookup(name); exists {
			return nil, schemaErrorf(JoinPath(p, name), "duplicate property")
		}
		child, err := decodeNode(props.Content[i+1], JoinPath(p, name))
		if err != nil {
			return nil, err
		}
		obj.Properties = append(obj.Properties, Prop(name, child))
	}

	return obj, nil
}

func decodeComposite(keys map[string]*yaml.Node) *Composite {
	for _, kw := range compositeKeywords {
		if n := keys[kw]; n != nil {
			return &Composite{Keyword: kw, Branches: len(n.Content)}
		}
	}
	return &Composite{}
}

func hasComposite(keys map[string]*yaml.Node) bool {
	for _, kw := range compositeKeywords {
		if keys[kw] != nil {
			return true
		}
	}
	return false
}

// declaredType resolves the "type" keyword. A list is accepted only when it
// names a single type.
func declaredType(n *yaml.Node, p string) (string, error) {
	if n == nil {
		return "", nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.SequenceNode:
		if len(n.Content) != 1 {
			types := make([]string, 0, len(n.Content))
			for _, c := range n.Content {
				types = append(types, c.Value)
			}
			return "", &SchemaError{
				Path:    p,
				Message: fmt.Sprintf("property declares %d types [%s]", len(types), strings.Join(types, ", ")),
				Hint:    "a flattened column needs exactly one type",
			}
		}
		return n.Content[0].Value, nil
	default:
		return "", schemaErrorf(p, "type must be a string")
	}
}

func mappingKeys(n *yaml.Node, p string) (map[string]*yaml.Node, error) {
	keys := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if _, dup := keys[k]; dup {
			return nil, schemaErrorf(p, "duplicate keyword %q", k)
		}
		keys[k] = n.Content[i+1]
	}
	return keys, nil
}

func scalarValue(n *yaml.Node) (string, bool) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}
