package commands

import (
	"github.com/spf13/cobra"

	"github.com/conduit-lang/jsonview/internal/cli/config"
	"github.com/conduit-lang/jsonview/internal/orm/codegen"
)

// viewFlags override the view and options sections of the config file
type viewFlags struct {
	schema         string
	name           string
	table          string
	documentColumn string
	keyColumn      string
	keyType        string
	predicate      string

	replace             bool
	indexes             bool
	dropExistingIndexes bool
	materialized        bool
	dateParts           []string
	indexPrefix         string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.schema, "schema", "s", "", "schema document (JSON or YAML)")
	flags.StringVarP(&f.name, "name", "n", "", "view name, optionally schema-qualified")
	flags.StringVarP(&f.table, "table", "t", "", "source table holding the documents")
	flags.StringVar(&f.documentColumn, "document-column", "", "json or jsonb column of the source table")
	flags.StringVar(&f.keyColumn, "key-column", "", "primary key column of the source table")
	flags.StringVar(&f.keyType, "key-type", "", "relational type of the key column")
	flags.StringVarP(&f.predicate, "predicate", "w", "", "SQL predicate scoping the view and its indexes")

	flags.BoolVar(&f.replace, "replace", false, "drop the view and its array relations first")
	flags.BoolVar(&f.indexes, "indexes", true, "create one partial index per column")
	flags.BoolVar(&f.dropExistingIndexes, "drop-existing-indexes", false, "drop every planned index before creating it")
	flags.BoolVar(&f.materialized, "materialized", false, "materialize array relations")
	flags.StringSliceVar(&f.dateParts, "date-parts", nil, "date parts to extract from date and date-time properties")
	flags.StringVar(&f.indexPrefix, "index-prefix", "", "prefix of synthesized index names")
}

// apply copies every flag the user set onto cfg
func (f *viewFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	for _, s := range []struct {
		flag  string
		value string
		dst   *string
	}{
		{"schema", f.schema, &cfg.View.Schema},
		{"name", f.name, &cfg.View.Name},
		{"table", f.table, &cfg.View.Table},
		{"document-column", f.documentColumn, &cfg.View.DocumentColumn},
		{"key-column", f.keyColumn, &cfg.View.KeyColumn},
		{"key-type", f.keyType, &cfg.View.KeyType},
		{"predicate", f.predicate, &cfg.View.Predicate},
		{"index-prefix", f.indexPrefix, &cfg.Options.IndexPrefix},
	} {
		if changed(s.flag) {
			*s.dst = s.value
		}
	}

	for _, b := range []struct {
		flag  string
		value bool
		dst   *bool
	}{
		{"replace", f.replace, &cfg.Options.Replace},
		{"indexes", f.indexes, &cfg.Options.Indexes},
		{"drop-existing-indexes", f.dropExistingIndexes, &cfg.Options.DropExistingIndexes},
		{"materialized", f.materialized, &cfg.Options.UseMaterializedView},
	} {
		if changed(b.flag) {
			*b.dst = b.value
		}
	}

	if changed("date-parts") {
		cfg.Options.ExtractDateParts = f.dateParts
	}
}

// buildPlan loads the config, applies flag overrides and plans the view
func buildPlan(cmd *cobra.Command, g *globalFlags, f *viewFlags) (*config.Config, *codegen.Plan, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	f.apply(cmd, cfg)

	req, err := cfg.Request()
	if err != nil {
		return nil, nil, err
	}

	plan, err := codegen.NewViewBuilder().Build(req)
	if err != nil {
		return nil, nil, err
	}
	return cfg, plan, nil
}
