package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

// ErrInvalidRequest is returned when a build request is missing names or
// names cannot be represented in the target database
var ErrInvalidRequest = errors.New("invalid request")

// Defaults applied to an empty Request.KeyColumn / Request.KeyType
const (
	DefaultKeyColumn = "id"
	DefaultKeyType   = "integer"
)

const (
	datePartColumnType   = "double precision"
	ordinalityColumnType = "bigint"
)

// Request describes one flattened view to plan
type Request struct {
	// Name is the view to create, optionally schema-qualified
	Name string
	// Table is the source table holding the documents
	Table string
	// DocumentColumn is the json or jsonb column of Table
	DocumentColumn string
	KeyColumn      string
	// KeyType is the relational type of KeyColumn, reported in column metadata
	KeyType string
	// Predicate is an opaque SQL boolean expression over Table. It scopes the
	// view and every partial index.
	Predicate string
	Schema    schema.Node
	Options   Options
}

// ViewBuilder plans the statements for a flattened view and its array relations
type ViewBuilder struct {
	walker   *Walker
	renderer *Renderer
	ddl      *DDLGenerator
	indexes  *IndexGenerator
}

// NewViewBuilder creates a view builder
func NewViewBuilder() *ViewBuilder {
	return &ViewBuilder{
		walker:   NewWalker(NewTypeMapper()),
		renderer: NewRenderer(),
		ddl:      NewDDLGenerator(),
		indexes:  NewIndexGenerator(),
	}
}

// Build validates req and returns the complete ordered plan. On any error the
// plan is nil and nothing has been emitted.
func (b *ViewBuilder) Build(req Request) (*Plan, error) {
	opts := req.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := normalizeRequest(&req); err != nil {
		return nil, err
	}

	props, arrays, err := b.walker.Walk(req.Schema, "")
	if err != nil {
		return nil, err
	}

	names := map[string]string{req.Name: ""}
	for i := range arrays {
		arrays[i].Name = req.Name + "_" + strings.ReplaceAll(arrays[i].Path, ".", "_")
		arrays[i].Materialized = opts.UseMaterializedView
		if err := checkIdentifier("array relation", tableBaseName(arrays[i].Name)); err != nil {
			return nil, err
		}
		if other, ok := names[arrays[i].Name]; ok {
			return nil, &schema.SchemaError{
				Path:    arrays[i].Path,
				Message: fmt.Sprintf("relation name %q is already used by %s", arrays[i].Name, describeOwner(other)),
				Hint:    "rename one of the properties",
			}
		}
		names[arrays[i].Name] = arrays[i].Path
	}

	view := ViewSpec{
		Name:           req.Name,
		Table:          req.Table,
		DocumentColumn: req.DocumentColumn,
		KeyColumn:      req.KeyColumn,
		Predicate:      strings.TrimSpace(req.Predicate),
		Properties:     props,
		Arrays:         arrays,
		DateParts:      opts.ExtractDateParts,
	}

	synth := NewNameSynthesizer(opts.IndexPrefix)
	relations, err := b.planRelations(&view, nil, req.KeyType, opts, synth)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		View:      view,
		Columns:   relations[0].Columns,
		Relations: relations,
	}
	plan.Statements = b.statements(plan, opts)
	return plan, nil
}

// planRelations plans the relation for arr (the primary view when arr is nil)
// followed by the relations derived from the view's arrays. Array items never
// contain arrays, so the recursion stops after one level.
func (b *ViewBuilder) planRelations(view *ViewSpec, arr *ArraySpec, keyType string, opts Options, synth *NameSynthesizer) ([]Relation, error) {
	rel, err := b.planRelation(view, arr, keyType, opts, synth)
	if err != nil {
		return nil, err
	}
	relations := []Relation{rel}
	if arr != nil {
		return relations, nil
	}

	for i := range view.Arrays {
		children, err := b.planRelations(view, &view.Arrays[i], keyType, opts, synth)
		if err != nil {
			return nil, err
		}
		relations = append(relations, children...)
	}
	return relations, nil
}

func (b *ViewBuilder) planRelation(view *ViewSpec, arr *ArraySpec, keyType string, opts Options, synth *NameSynthesizer) (Relation, error) {
	cols := &columnSet{seen: make(map[string]bool)}
	cols.add(view.RowIDColumn(), keyType, "")

	props := view.Properties
	rel := Relation{Name: view.Name}
	if arr != nil {
		props = arr.Properties
		rel.Name = arr.Name
		rel.Materialized = arr.Materialized
		cols.add(ParentColumnPrefix+arr.JoinColumn, arr.JoinKey.ColumnType, arr.Path)
		cols.add(OrdinalityColumn, ordinalityColumnType, arr.Path)
		rel.Body = b.renderer.ArrayBody(view, arr)
	} else {
		rel.Body = b.renderer.ViewBody(view)
	}

	for _, d := range props {
		cols.add(d.Column, d.ColumnType, d.Path)
	}
	for _, d := range props {
		if !d.Extractor.Temporal() {
			continue
		}
		for _, part := range view.DateParts {
			cols.add(DatePartColumn(d, part), datePartColumnType, d.Path)
		}
	}
	if cols.err != nil {
		return Relation{}, cols.err
	}
	rel.Columns = cols.columns

	if opts.SkipIndexes {
		return rel, nil
	}
	switch {
	case arr == nil:
		rel.Indexes = b.sourceIndexes(view, synth)
	case arr.Materialized:
		rel.Indexes = b.relationIndexes(rel, props, synth)
	}
	return rel, nil
}

// sourceIndexes are partial expression indexes on the source table. Each
// expression and predicate is exactly what the view selects and filters on.
func (b *ViewBuilder) sourceIndexes(view *ViewSpec, synth *NameSynthesizer) []IndexSpec {
	var specs []IndexSpec
	add := func(expr, column, method string) {
		specs = append(specs, IndexSpec{
			Name:       synth.Name(view.Predicate, QuoteQualified(view.Table)+"."+expr),
			Table:      view.Table,
			Expression: expr,
			Predicate:  view.Predicate,
			Method:     method,
			Column:     column,
		})
	}

	for _, d := range view.Properties {
		add(b.renderer.IndexExpression(view, d), d.Column, indexMethod(d))
	}
	for _, d := range view.Properties {
		if !d.Extractor.Temporal() {
			continue
		}
		for _, part := range view.DateParts {
			expr := b.renderer.DatePartExpression(b.renderer.IndexExpression(view, d), d, part)
			add(expr, DatePartColumn(d, part), MethodBTree)
		}
	}
	return specs
}

// relationIndexes index every column of a materialized relation directly
func (b *ViewBuilder) relationIndexes(rel Relation, props []PropertyDescriptor, synth *NameSynthesizer) []IndexSpec {
	methods := make(map[string]string, len(props))
	for _, d := range props {
		methods[d.Column] = indexMethod(d)
	}

	specs := make([]IndexSpec, 0, len(rel.Columns))
	for _, c := range rel.Columns {
		col := QuoteIdentifier(c.Name)
		method := methods[c.Name]
		if method == "" {
			method = MethodBTree
		}
		specs = append(specs, IndexSpec{
			Name:       synth.Name("", QuoteQualified(rel.Name)+"."+col),
			Table:      rel.Name,
			Expression: col,
			Method:     method,
			Column:     c.Name,
		})
	}
	return specs
}

// statements serializes planned relations in execution order
func (b *ViewBuilder) statements(plan *Plan, opts Options) []Statement {
	var stmts []Statement
	primary := plan.Relations[0]
	children := plan.Relations[1:]

	if opts.Replace {
		for _, r := range children {
			kind := StatementDropView
			if r.Materialized {
				kind = StatementDropMaterializedView
			}
			stmts = append(stmts, Statement{Kind: kind, Target: r.Name, SQL: b.ddl.GenerateDropView(r.Name, r.Materialized)})
		}
		stmts = append(stmts, Statement{Kind: StatementDropView, Target: primary.Name, SQL: b.ddl.GenerateDropView(primary.Name, false)})
	}

	if !opts.SkipIndexes && opts.DropExistingIndexes {
		seen := make(map[string]bool)
		for _, idx := range plan.Indexes() {
			sql := b.indexes.GenerateDropIndex(idx)
			if seen[sql] {
				continue
			}
			seen[sql] = true
			stmts = append(stmts, Statement{Kind: StatementDropIndex, Target: idx.Name, SQL: sql})
		}
	}

	for _, r := range plan.Relations {
		kind := StatementCreateView
		if r.Materialized {
			kind = StatementCreateMaterializedView
		}
		stmts = append(stmts, Statement{Kind: kind, Target: r.Name, SQL: b.ddl.GenerateCreateView(r.Name, r.Body, r.Materialized)})
		for _, idx := range r.Indexes {
			stmts = append(stmts, Statement{Kind: StatementCreateIndex, Target: idx.Name, SQL: b.indexes.GenerateCreateIndex(idx)})
		}
	}

	return stmts
}

func indexMethod(d PropertyDescriptor) string {
	if d.Extractor.RequiresPostGIS() {
		return MethodGiST
	}
	return MethodBTree
}

func normalizeRequest(req *Request) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Table = strings.TrimSpace(req.Table)
	req.DocumentColumn = strings.TrimSpace(req.DocumentColumn)
	if req.KeyColumn == "" {
		req.KeyColumn = DefaultKeyColumn
	}
	if req.KeyType == "" {
		req.KeyType = DefaultKeyType
	}

	switch {
	case req.Name == "":
		return fmt.Errorf("%w: view name is required", ErrInvalidRequest)
	case req.Table == "":
		return fmt.Errorf("%w: source table is required", ErrInvalidRequest)
	case req.DocumentColumn == "":
		return fmt.Errorf("%w: document column is required", ErrInvalidRequest)
	case req.Schema == nil:
		return &schema.SchemaError{Message: "schema is empty"}
	}

	for _, check := range []struct{ what, name string }{
		{"view", tableBaseName(req.Name)},
		{"table", tableBaseName(req.Table)},
		{"document column", req.DocumentColumn},
		{"key column", req.KeyColumn},
	} {
		if err := checkIdentifier(check.what, check.name); err != nil {
			return err
		}
	}
	return nil
}

func checkIdentifier(what, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s name is empty", ErrInvalidRequest, what)
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("%w: %s name %q is longer than %d characters", ErrInvalidRequest, what, name, MaxIdentifierLength)
	}
	return nil
}

func describeOwner(path string) string {
	if path == "" {
		return "the view itself"
	}
	return fmt.Sprintf("array %q", path)
}

// columnSet collects relation columns and records the first name collision
type columnSet struct {
	columns []Column
	seen    map[string]bool
	err     error
}

func (c *columnSet) add(name, typ, path string) {
	if c.err != nil {
		return
	}
	if len(name) > MaxIdentifierLength {
		c.err = &schema.SchemaError{
			Path:    path,
			Message: fmt.Sprintf("column name %q is longer than %d characters", name, MaxIdentifierLength),
		}
		return
	}
	if c.seen[name] {
		c.err = &schema.SchemaError{
			Path:    path,
			Message: fmt.Sprintf("column %q is produced twice", name),
			Hint:    "rename the property or drop the colliding date part",
		}
		return
	}
	c.seen[name] = true
	c.columns = append(c.columns, Column{Name: name, Type: typ})
}
