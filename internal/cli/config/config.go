// Package config loads jsonview.yml together with JSONVIEW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/jsonview/internal/orm/codegen"
	"github.com/conduit-lang/jsonview/internal/orm/schema"
)

// EnvPrefix starts every environment override, e.g. JSONVIEW_VIEW_TABLE
const EnvPrefix = "JSONVIEW"

// Config represents the jsonview configuration
type Config struct {
	Database DatabaseConfig  `mapstructure:"database"`
	View     ViewConfig      `mapstructure:"view"`
	Options  OptionsConfig  `mapstructure:"options"`

	// dir is the directory relative paths are resolved against
	dir string
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ViewConfig describes the view to build and where its documents live
type ViewConfig struct {
	Name           string `mapstructure:"name"`
	Table          string `mapstructure:"table"`
	DocumentColumn string `mapstructure:"document_column"`
	KeyColumn      string `mapstructure:"key_column"`
	KeyType        string `mapstructure:"key_type"`
	Predicate      string `mapstructure:"predicate"`
	// Schema is the path of the schema document, relative to the config file
	Schema string `mapstructure:"schema"`
}

// OptionsConfig is the options section. Indexes is the positive form of
// codegen.Options.SkipIndexes so the file reads "indexes: false".
type OptionsConfig struct {
	Indexes             bool     `mapstructure:"indexes"`
	Replace             bool     `mapstructure:"replace"`
	DropExistingIndexes bool     `mapstructure:"drop_existing_indexes"`
	UseMaterializedView bool     `mapstructure:"use_materialized_view"`
	ExtractDateParts    []string `mapstructure:"extract_date_parts"`
	IndexPrefix         string   `mapstructure:"index_prefix"`
}

// Codegen converts the section into build options
func (o OptionsConfig) Codegen() codegen.Options {
	return codegen.Options{
		SkipIndexes:         !o.Indexes,
		Replace:             o.Replace,
		DropExistingIndexes: o.DropExistingIndexes,
		UseMaterializedView: o.UseMaterializedView,
		ExtractDateParts:    o.ExtractDateParts,
		IndexPrefix:         o.IndexPrefix,
	}
}

// Load loads the configuration from path, or from jsonview.yml / jsonview.yaml
// in the working directory when path is empty. A missing default file is not
// an error; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := codegen.DefaultOptions()
	v.SetDefault("database.url", "")
	v.SetDefault("view.name", "")
	v.SetDefault("view.table", "")
	v.SetDefault("view.document_column", "doc")
	v.SetDefault("view.key_column", codegen.DefaultKeyColumn)
	v.SetDefault("view.key_type", codegen.DefaultKeyType)
	v.SetDefault("view.predicate", "")
	v.SetDefault("view.schema", "")
	v.SetDefault("options.indexes", !defaults.SkipIndexes)
	v.SetDefault("options.replace", defaults.Replace)
	v.SetDefault("options.drop_existing_indexes", defaults.DropExistingIndexes)
	v.SetDefault("options.use_materialized_view", defaults.UseMaterializedView)
	v.SetDefault("options.extract_date_parts", []string{})
	v.SetDefault("options.index_prefix", defaults.IndexPrefix)

	dir := "."
	if path != "" {
		v.SetConfigFile(path)
		dir = filepath.Dir(path)
	} else {
		v.SetConfigName("jsonview")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.dir = dir

	opts := cfg.Options.Codegen()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cfg.Options.ExtractDateParts = opts.ExtractDateParts
	cfg.Options.IndexPrefix = opts.IndexPrefix

	return &cfg, nil
}

// DatabaseURL returns DATABASE_URL when set, else the configured URL
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return c.Database.URL
}

// SchemaPath resolves the schema document path against the config directory
func (c *Config) SchemaPath() string {
	if c.View.Schema == "" || filepath.IsAbs(c.View.Schema) {
		return c.View.Schema
	}
	return filepath.Join(c.dir, c.View.Schema)
}

// Request loads the schema document and assembles a build request
func (c *Config) Request() (codegen.Request, error) {
	path := c.SchemaPath()
	if path == "" {
		return codegen.Request{}, fmt.Errorf("view.schema is not set")
	}

	root, err := schema.LoadFile(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return codegen.Request{}, err
	}

	return codegen.Request{
		Name:           c.View.Name,
		Table:          c.View.Table,
		DocumentColumn: c.View.DocumentColumn,
		KeyColumn:      c.View.KeyColumn,
		KeyType:        c.View.KeyType,
		Predicate:      c.View.Predicate,
		Schema:         root,
		Options:        c.Options.Codegen(),
	}, nil
}
