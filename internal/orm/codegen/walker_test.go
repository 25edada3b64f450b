package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

func str() *schema.Scalar { return schema.NewScalar(schema.TypeString, "") }
func num() *schema.Scalar { return schema.NewScalar(schema.TypeInteger, "") }

func TestWalker_Preorder(t *testing.T) {
	root := schema.NewObject(
		schema.Prop("foo", schema.NewObject(
			schema.Prop("bar", num()),
			schema.Prop("when", schema.NewScalar(schema.TypeString, schema.FormatDate)),
		)),
		schema.Prop("baz", str()),
	)

	props, arrays, err := NewWalker(nil).Walk(root, "")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(arrays) != 0 {
		t.Errorf("Walk() arrays = %d, want 0", len(arrays))
	}

	want := []struct {
		path      string
		extractor extract.Extractor
	}{
		{"foo.bar", extract.Integer},
		{"foo.when", extract.Date},
		{"baz", extract.String},
	}
	if len(props) != len(want) {
		t.Fatalf("Walk() props = %d, want %d", len(props), len(want))
	}
	for i, w := range want {
		if props[i].Path != w.path || props[i].Column != w.path {
			t.Errorf("props[%d] path = %q column = %q, want %q", i, props[i].Path, props[i].Column, w.path)
		}
		if props[i].Extractor != w.extractor {
			t.Errorf("props[%d] extractor = %v, want %v", i, props[i].Extractor, w.extractor)
		}
	}
}

func TestWalker_Prefix(t *testing.T) {
	root := schema.NewObject(schema.Prop("a", str()))

	props, _, err := NewWalker(nil).Walk(root, "data")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if props[0].Path != "data.a" {
		t.Errorf("Walk() path = %q, want %q", props[0].Path, "data.a")
	}
}

func TestWalker_Arrays(t *testing.T) {
	root := schema.NewObject(
		schema.Prop("order", schema.NewObject(
			schema.Prop("number", num()),
			schema.Prop("lines", schema.NewArray(schema.NewObject(
				schema.Prop("sku", str()),
				schema.Prop("price", schema.NewObject(
					schema.Prop("amount", schema.NewScalar(schema.TypeString, schema.FormatDecimal)),
				)),
			))),
		).WithID("number")),
		schema.Prop("note", str()),
	)

	props, arrays, err := NewWalker(nil).Walk(root, "")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if len(props) != 2 || props[0].Path != "order.number" || props[1].Path != "note" {
		t.Errorf("Walk() props = %+v, array contents must not be folded in", props)
	}
	if len(arrays) != 1 {
		t.Fatalf("Walk() arrays = %d, want 1", len(arrays))
	}

	arr := arrays[0]
	if arr.Path != "order.lines" {
		t.Errorf("array path = %q, want order.lines", arr.Path)
	}
	if arr.IDProperty != "number" || arr.JoinColumn != "order.number" {
		t.Errorf("array id = %q join = %q", arr.IDProperty, arr.JoinColumn)
	}
	if arr.JoinKey.Extractor != extract.Integer || arr.JoinKey.Path != "order.number" {
		t.Errorf("array join key = %+v", arr.JoinKey)
	}
	if len(arr.Properties) != 2 || arr.Properties[0].Path != "sku" || arr.Properties[1].Path != "price.amount" {
		t.Errorf("array properties = %+v, want item-relative paths", arr.Properties)
	}
}

func TestWalker_CompositesAreOpaque(t *testing.T) {
	root := schema.NewObject(
		schema.Prop("a", str()),
		schema.Prop("either", &schema.Composite{Keyword: "oneOf", Branches: 2}),
	)

	props, arrays, err := NewWalker(nil).Walk(root, "")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(props) != 1 || len(arrays) != 0 {
		t.Errorf("Walk() = %d props, %d arrays; want 1, 0", len(props), len(arrays))
	}
}

func TestWalker_Errors(t *testing.T) {
	tests := []struct {
		name    string
		root    schema.Node
		wantMsg string
		schema  bool
	}{
		{
			name: "array without id_property",
			root: schema.NewObject(
				schema.Prop("lines", schema.NewArray(schema.NewObject(schema.Prop("sku", str())))),
			),
			wantMsg: "id_property",
			schema:  true,
		},
		{
			name: "nested arrays",
			root: schema.NewObject(
				schema.Prop("id", num()),
				schema.Prop("lines", schema.NewArray(schema.NewObject(
					schema.Prop("id", num()),
					schema.Prop("parts", schema.NewArray(schema.NewObject(schema.Prop("x", str())))),
				).WithID("id"))),
			).WithID("id"),
			wantMsg: "another array",
			schema:  true,
		},
		{
			name:    "unsupported format",
			root:    schema.NewObject(schema.Prop("mail", schema.NewScalar(schema.TypeString, "email"))),
			wantMsg: "unsupported type at mail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewWalker(nil).Walk(tt.root, "")
			if err == nil {
				t.Fatal("Walk() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Walk() error = %q, want containing %q", err.Error(), tt.wantMsg)
			}
			var se *schema.SchemaError
			if errors.As(err, &se) != tt.schema {
				t.Errorf("Walk() error type = %T, schema error = %v", err, tt.schema)
			}
		})
	}
}
