package codegen

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

const ordersSchema = `{
  "type": "object",
  "properties": {
    "foo": {"type": "object", "properties": {"bar": {"type": "integer"}}},
    "baz": {"type": "string"},
    "created": {"type": "string", "format": "date-time"},
    "where": {"type": "string", "format": "geopoint"},
    "order": {
      "type": "object",
      "id_property": "number",
      "properties": {
        "number": {"type": "integer"},
        "lines": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "sku": {"type": "string"},
              "qty": {"type": "integer"}
            }
          }
        }
      }
    }
  }
}`

func mustParse(t *testing.T, doc string) *schema.Object {
	t.Helper()
	root, err := schema.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("schema.Parse() error = %v", err)
	}
	return root
}

func request(t *testing.T, doc string, opts Options) Request {
	t.Helper()
	return Request{
		Name:           "form_7",
		Table:          "forms",
		DocumentColumn: "doc",
		Predicate:      `"form_id" = 7`,
		Schema:         mustParse(t, doc),
		Options:        opts,
	}
}

func kinds(plan *Plan) []StatementKind {
	out := make([]StatementKind, len(plan.Statements))
	for i, s := range plan.Statements {
		out[i] = s.Kind
	}
	return out
}

func TestViewBuilder_DefaultPlan(t *testing.T) {
	plan, err := NewViewBuilder().Build(request(t, ordersSchema, DefaultOptions()))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []StatementKind{
		StatementCreateView,
		StatementCreateIndex, // foo.bar
		StatementCreateIndex, // baz
		StatementCreateIndex, // created
		StatementCreateIndex, // where
		StatementCreateIndex, // order.number
		StatementCreateView,  // order.lines
	}
	if got := kinds(plan); !reflect.DeepEqual(got, want) {
		t.Fatalf("Build() kinds = %v, want %v", got, want)
	}

	if plan.Statements[0].Target != "form_7" || plan.Statements[6].Target != "form_7_order_lines" {
		t.Errorf("Build() targets = %q, %q", plan.Statements[0].Target, plan.Statements[6].Target)
	}

	for _, s := range plan.Filter(StatementCreateIndex) {
		if !strings.HasSuffix(s.SQL, `WHERE "form_id" = 7;`) {
			t.Errorf("index is not scoped by the view predicate: %s", s.SQL)
		}
	}
	if !strings.Contains(plan.SQL(), `USING gist ((json_geopoint("doc", 'where')))`) {
		t.Errorf("geopoint column should be indexed with gist:\n%s", plan.SQL())
	}
}

func TestViewBuilder_Columns(t *testing.T) {
	for _, indexes := range []bool{true, false} {
		opts := DefaultOptions()
		opts.SkipIndexes = !indexes

		plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		want := []Column{
			{"forms_id", "integer"},
			{"foo.bar", "integer"},
			{"baz", "text"},
			{"created", "timestamp with time zone"},
			{"where", "geometry(Point, 4326)"},
			{"order.number", "integer"},
		}
		if !reflect.DeepEqual(plan.Columns, want) {
			t.Errorf("Build(indexes=%v) columns = %v, want %v", indexes, plan.Columns, want)
		}

		lines := plan.Relations[1]
		wantLines := []Column{
			{"forms_id", "integer"},
			{"parent.order.number", "integer"},
			{"ordinality", "bigint"},
			{"sku", "text"},
			{"qty", "integer"},
		}
		if !reflect.DeepEqual(lines.Columns, wantLines) {
			t.Errorf("Build(indexes=%v) array columns = %v, want %v", indexes, lines.Columns, wantLines)
		}
	}
}

func TestViewBuilder_NoIndexes(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipIndexes = true
	opts.DropExistingIndexes = true
	opts.UseMaterializedView = true

	plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []StatementKind{StatementCreateView, StatementCreateMaterializedView}
	if got := kinds(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("Build() kinds = %v, want %v", got, want)
	}
	if len(plan.Indexes()) != 0 {
		t.Errorf("Build() planned %d indexes with indexes disabled", len(plan.Indexes()))
	}
}

func TestViewBuilder_Replace(t *testing.T) {
	opts := DefaultOptions()
	opts.Replace = true
	opts.SkipIndexes = true

	plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{
		`DROP VIEW IF EXISTS "form_7_order_lines";`,
		`DROP VIEW IF EXISTS "form_7";`,
	}
	drops := plan.Filter(StatementDropView, StatementDropMaterializedView)
	if len(drops) != len(want) {
		t.Fatalf("Build() drops = %v", drops)
	}
	for i, w := range want {
		if drops[i].SQL != w {
			t.Errorf("drop %d = %s, want %s", i, drops[i].SQL, w)
		}
		if plan.Statements[i].SQL != w {
			t.Errorf("drops must lead the plan, statement %d = %s", i, plan.Statements[i].SQL)
		}
	}
}

func TestViewBuilder_ReplaceMaterialized(t *testing.T) {
	opts := DefaultOptions()
	opts.Replace = true
	opts.UseMaterializedView = true

	plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if plan.Statements[0].SQL != `DROP MATERIALIZED VIEW IF EXISTS "form_7_order_lines";` {
		t.Errorf("Build() first statement = %s", plan.Statements[0].SQL)
	}
	if plan.Statements[1].Kind != StatementDropView {
		t.Errorf("Build() second statement = %v, want drop-view", plan.Statements[1].Kind)
	}
}

func TestViewBuilder_DropExistingIndexes(t *testing.T) {
	opts := DefaultOptions()
	opts.DropExistingIndexes = true

	plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	drops := plan.Filter(StatementDropIndex)
	creates := plan.Filter(StatementCreateIndex)
	if len(drops) != len(creates) || len(drops) == 0 {
		t.Fatalf("Build() %d drop-index vs %d create-index", len(drops), len(creates))
	}
	for i := range drops {
		if drops[i].Target != creates[i].Target {
			t.Errorf("drop %q does not match create %q", drops[i].Target, creates[i].Target)
		}
	}
	if plan.Statements[0].Kind != StatementDropIndex {
		t.Errorf("Build() drops should precede creates, first = %v", plan.Statements[0].Kind)
	}

	plain, _ := NewViewBuilder().Build(request(t, ordersSchema, DefaultOptions()))
	if len(plain.Filter(StatementDropIndex, StatementDropView, StatementDropMaterializedView)) != 0 {
		t.Error("Build() emitted drops without the flags")
	}
}

func TestViewBuilder_MaterializedArrays(t *testing.T) {
	opts := DefaultOptions()
	opts.UseMaterializedView = true

	plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	lines := plan.Relations[1]
	if !lines.Materialized {
		t.Fatal("array relation should be materialized")
	}
	if len(lines.Indexes) != len(lines.Columns) {
		t.Errorf("materialized relation has %d indexes for %d columns", len(lines.Indexes), len(lines.Columns))
	}
	for _, idx := range lines.Indexes {
		if idx.Table != "form_7_order_lines" || idx.Predicate != "" {
			t.Errorf("materialized index = %+v", idx)
		}
	}

	stmts := plan.Statements
	last := stmts[len(stmts)-len(lines.Indexes)-1]
	if last.Kind != StatementCreateMaterializedView {
		t.Errorf("expected create-materialized-view before its indexes, got %v", last.Kind)
	}
	if !strings.Contains(last.SQL, "CREATE MATERIALIZED VIEW \"form_7_order_lines\" AS\nSELECT") {
		t.Errorf("unexpected materialized view statement:\n%s", last.SQL)
	}
}

func TestViewBuilder_PlainArraysHaveNoIndexes(t *testing.T) {
	plan, err := NewViewBuilder().Build(request(t, ordersSchema, DefaultOptions()))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if n := len(plan.Relations[1].Indexes); n != 0 {
		t.Errorf("plain array relation has %d indexes", n)
	}
	for _, idx := range plan.Indexes() {
		if idx.Table != "forms" {
			t.Errorf("index on %q, want only source table indexes", idx.Table)
		}
	}
}

func TestViewBuilder_DateParts(t *testing.T) {
	opts := DefaultOptions()
	opts.ExtractDateParts = []string{"year", "dow"}

	plan, err := NewViewBuilder().Build(request(t, ordersSchema, opts))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var names []string
	for _, c := range plan.Columns {
		if c.Type == "double precision" {
			names = append(names, c.Name)
		}
	}
	if want := []string{"created_year", "created_dow"}; !reflect.DeepEqual(names, want) {
		t.Errorf("date part columns = %v, want %v", names, want)
	}

	var partIndexes int
	for _, idx := range plan.Relations[0].Indexes {
		if strings.HasPrefix(idx.Expression, "date_part(") {
			partIndexes++
			if !strings.Contains(idx.Expression, "AT TIME ZONE 'UTC'") {
				t.Errorf("timestamptz date part is not immutable: %s", idx.Expression)
			}
		}
	}
	if partIndexes != 2 {
		t.Errorf("date part indexes = %d, want 2", partIndexes)
	}

	body := plan.Relations[0].Body
	if !strings.Contains(body, `AS "created_year"`) {
		t.Errorf("view body lacks date part column:\n%s", body)
	}
}

func TestViewBuilder_IndexNamesStable(t *testing.T) {
	b := NewViewBuilder()

	first, err := b.Build(request(t, ordersSchema, DefaultOptions()))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := NewViewBuilder().Build(request(t, ordersSchema, DefaultOptions()))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !reflect.DeepEqual(first.Statements, second.Statements) {
		t.Error("Build() is not deterministic")
	}

	other := request(t, ordersSchema, DefaultOptions())
	other.Predicate = `"form_id" = 8`
	third, err := b.Build(other)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, idx := range first.Indexes() {
		if seen[idx.Name] {
			t.Errorf("duplicate index name %q", idx.Name)
		}
		seen[idx.Name] = true
	}
	for _, idx := range third.Indexes() {
		if seen[idx.Name] {
			t.Errorf("index name %q reused across predicates", idx.Name)
		}
	}
}

func TestViewBuilder_IndexNamesDistinctAcrossTables(t *testing.T) {
	const doc = `{"type": "object", "properties": {"name": {"type": "string"}}}`
	opts := DefaultOptions()
	opts.DropExistingIndexes = true

	build := func(name, table string) *Plan {
		t.Helper()
		plan, err := NewViewBuilder().Build(Request{
			Name:           name,
			Table:          table,
			DocumentColumn: "data",
			Predicate:      "active",
			Schema:         mustParse(t, doc),
			Options:        opts,
		})
		if err != nil {
			t.Fatalf("Build(%s) error = %v", table, err)
		}
		return plan
	}

	customers := build("customer_view", "customers")
	suppliers := build("supplier_view", "suppliers")

	names := make(map[string]bool)
	for _, idx := range customers.Indexes() {
		names[idx.Name] = true
	}
	for _, idx := range suppliers.Indexes() {
		if names[idx.Name] {
			t.Errorf("index name %q shared by customers and suppliers", idx.Name)
		}
	}

	drops := make(map[string]bool)
	for _, st := range customers.Statements {
		if st.Kind == StatementDropIndex {
			drops[st.SQL] = true
		}
	}
	for _, st := range suppliers.Statements {
		if st.Kind == StatementDropIndex && drops[st.SQL] {
			t.Errorf("suppliers plan drops a customers index: %s", st.SQL)
		}
	}
}

func TestViewBuilder_ZeroOptionsPlanIndexes(t *testing.T) {
	plan, err := NewViewBuilder().Build(Request{
		Name:           "v",
		Table:          "t",
		DocumentColumn: "data",
		Schema:         mustParse(t, ordersSchema),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(plan.Indexes()) == 0 {
		t.Error("Build() with zero Options planned no indexes")
	}
}

func TestViewBuilder_YAMLAndJSONAgree(t *testing.T) {
	yamlSchema := `
type: object
properties:
  foo:
    type: object
    properties:
      bar: {type: integer}
  baz: {type: string}
  created: {type: string, format: date-time}
  where: {type: string, format: geopoint}
  order:
    type: object
    id_property: number
    properties:
      number: {type: integer}
      lines:
        type: array
        items:
          type: object
          properties:
            sku: {type: string}
            qty: {type: integer}
`
	fromJSON, err := NewViewBuilder().Build(request(t, ordersSchema, DefaultOptions()))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	fromYAML, err := NewViewBuilder().Build(request(t, yamlSchema, DefaultOptions()))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fromJSON.SQL() != fromYAML.SQL() {
		t.Errorf("YAML plan differs from JSON plan:\n%s\n---\n%s", fromYAML.SQL(), fromJSON.SQL())
	}
}

func TestViewBuilder_SchemaErrorsEmitNothing(t *testing.T) {
	tests := []struct {
		name string
		root schema.Node
	}{
		{
			name: "array without id_property",
			root: schema.NewObject(
				schema.Prop("lines", schema.NewArray(schema.NewObject(schema.Prop("sku", str())))),
			),
		},
		{
			name: "array items contain an array",
			root: schema.NewObject(
				schema.Prop("id", num()),
				schema.Prop("lines", schema.NewArray(schema.NewObject(
					schema.Prop("id", num()),
					schema.Prop("parts", schema.NewArray(schema.NewObject(schema.Prop("x", str())))),
				).WithID("id"))),
			).WithID("id"),
		},
		{
			name: "date part collides with a property",
			root: schema.NewObject(
				schema.Prop("created", schema.NewScalar(schema.TypeString, schema.FormatDate)),
				schema.Prop("created_year", num()),
			),
		},
		{
			name: "array relation name collides",
			root: schema.NewObject(
				schema.Prop("id", num()),
				schema.Prop("a_b", schema.NewArray(schema.NewObject(schema.Prop("x", str())))),
				schema.Prop("a", schema.NewObject(
					schema.Prop("id", num()),
					schema.Prop("b", schema.NewArray(schema.NewObject(schema.Prop("x", str())))),
				).WithID("id")),
			).WithID("id"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.ExtractDateParts = []string{"year"}

			plan, err := NewViewBuilder().Build(Request{
				Name:           "v",
				Table:          "forms",
				DocumentColumn: "doc",
				Schema:         tt.root,
				Options:        opts,
			})
			if plan != nil {
				t.Errorf("Build() returned a plan with %d statements on error", len(plan.Statements))
			}
			if !schema.IsSchemaError(err) {
				t.Errorf("Build() error = %v, want *schema.SchemaError", err)
			}
		})
	}
}

func TestViewBuilder_TwoTypesRejectedBeforePlanning(t *testing.T) {
	_, err := schema.Parse([]byte(`{"type":"object","properties":{"a":{"type":["string","integer"]}}}`))
	if !schema.IsSchemaError(err) {
		t.Fatalf("Parse() error = %v, want *schema.SchemaError", err)
	}
}

func TestViewBuilder_UnsupportedType(t *testing.T) {
	root := schema.NewObject(schema.Prop("mail", schema.NewScalar(schema.TypeString, "email")))

	plan, err := NewViewBuilder().Build(Request{Name: "v", Table: "t", DocumentColumn: "doc", Schema: root})
	if plan != nil || !schema.IsUnsupportedType(err) {
		t.Errorf("Build() = %v, %v; want nil plan and UnsupportedTypeError", plan, err)
	}
}

func TestViewBuilder_InvalidRequest(t *testing.T) {
	root := schema.NewObject(schema.Prop("a", str()))

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing name", Request{Table: "t", DocumentColumn: "doc", Schema: root}, ErrInvalidRequest},
		{"missing table", Request{Name: "v", DocumentColumn: "doc", Schema: root}, ErrInvalidRequest},
		{"missing document column", Request{Name: "v", Table: "t", Schema: root}, ErrInvalidRequest},
		{"long view name", Request{Name: strings.Repeat("v", 64), Table: "t", DocumentColumn: "doc", Schema: root}, ErrInvalidRequest},
		{"bad option", Request{Name: "v", Table: "t", DocumentColumn: "doc", Schema: root,
			Options: Options{ExtractDateParts: []string{"nope"}}}, ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewViewBuilder().Build(tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestViewBuilder_KeyDefaults(t *testing.T) {
	req := request(t, ordersSchema, DefaultOptions())
	req.KeyColumn = "uuid"
	req.KeyType = "uuid"

	plan, err := NewViewBuilder().Build(req)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if plan.Columns[0] != (Column{Name: "forms_uuid", Type: "uuid"}) {
		t.Errorf("row id column = %+v", plan.Columns[0])
	}
	if !strings.Contains(plan.Relations[0].Body, `SELECT "uuid" AS "forms_uuid"`) {
		t.Errorf("view body:\n%s", plan.Relations[0].Body)
	}
	if plan.View.Properties[0].Extractor != extract.Integer {
		t.Errorf("first property extractor = %v", plan.View.Properties[0].Extractor)
	}
}
