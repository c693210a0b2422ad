// Package config loads transition job files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"transitions/internal/blob"
	"transitions/internal/source"
	"transitions/pkg/datasetapi"
	"transitions/pkg/transition"
)

// Environment overrides applied by Load.
const (
	EnvSourceDriver = "TRANSITIONS_SOURCE_DRIVER"
	EnvSourcePath   = "TRANSITIONS_SOURCE_PATH"
	EnvSQLitePath   = "TRANSITIONS_SQLITE_PATH"
	EnvPostgresDSN  = "TRANSITIONS_POSTGRES_DSN"
)

// Source describes where observations are read from.
type Source struct {
	Driver string        `yaml:"driver"`
	Path   string        `yaml:"path"`
	DSN    string        `yaml:"dsn"`
	Query  string        `yaml:"query"`
	Schema source.Schema `yaml:"schema"`
}

// Columns names the role columns.
type Columns struct {
	Subject   string `yaml:"subject"`
	Timepoint string `yaml:"timepoint"`
	Result    string `yaml:"result"`
}

// Export configures artifact rendering.
type Export struct {
	Formats []string `yaml:"formats"`
}

// Blob configures artifact storage. Empty fields fall back to the
// TRANSITIONS_BLOB_* environment.
type Blob struct {
	Driver string        `yaml:"driver"`
	FSRoot string        `yaml:"fs_root"`
	S3     blob.S3Config `yaml:"s3"`
}

// Config is a transition job.
type Config struct {
	Source   Source  `yaml:"source"`
	Columns  Columns `yaml:"columns"`
	Cap      int     `yaml:"cap"`
	Modulate int     `yaml:"modulate"`
	Output   string  `yaml:"output"`
	Lookup   string  `yaml:"lookup"`
	Export   Export  `yaml:"export"`
	Blob     Blob    `yaml:"blob"`
}

// Default returns the configuration used when no job file is given.
func Default() Config {
	cols := transition.DefaultColumns()
	return Config{
		Source:  Source{Driver: source.DriverCSV},
		Columns: Columns{Subject: cols.Subject, Timepoint: cols.Timepoint, Result: cols.Result},
		Lookup:  transition.LookupIndexed.String(),
		Export:  Export{Formats: []string{string(datasetapi.FormatJSON), string(datasetapi.FormatCSV)}},
	}
}

// Load reads the job file at path over the defaults and applies environment
// overrides. An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Parse decodes a job document over the defaults without consulting the
// environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSourceDriver); v != "" {
		c.Source.Driver = v
	}
	if v := os.Getenv(EnvSourcePath); v != "" {
		c.Source.Path = v
	}
	driver := strings.ToLower(c.Source.Driver)
	if v := os.Getenv(EnvSQLitePath); v != "" && driver == source.DriverSQLite {
		c.Source.Path = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" && driver == source.DriverPostgres {
		c.Source.DSN = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	driver := strings.ToLower(strings.TrimSpace(c.Source.Driver))
	switch driver {
	case source.DriverCSV, "":
	case source.DriverSQLite, source.DriverPostgres:
		if strings.TrimSpace(c.Source.Query) == "" {
			return fmt.Errorf("config: source.query required for %s driver", driver)
		}
		if driver == source.DriverPostgres && strings.TrimSpace(c.Source.DSN) == "" {
			return errors.New("config: source.dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown source driver %q", c.Source.Driver)
	}
	if c.Cap < 0 {
		return fmt.Errorf("config: cap must be >= 0, got %d", c.Cap)
	}
	if c.Modulate < 0 {
		return fmt.Errorf("config: modulate must be >= 0, got %d", c.Modulate)
	}
	if _, err := transition.ParseStrategy(c.Lookup); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, f := range c.Export.Formats {
		if _, err := datasetapi.ParseFormat(f); err != nil {
			return fmt.Errorf("config: export: %w", err)
		}
	}
	switch blob.Driver(strings.ToLower(c.Blob.Driver)) {
	case "", blob.DriverFilesystem, blob.DriverMemory, blob.DriverS3:
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	return nil
}

// SourceSpec converts the source section for source.Open.
func (c Config) SourceSpec() source.Spec {
	return source.Spec{
		Driver: c.Source.Driver,
		Path:   c.Source.Path,
		DSN:    c.Source.DSN,
		Query:  c.Source.Query,
		Schema: c.Source.Schema,
	}
}

// TransitionColumns returns the role column names.
func (c Config) TransitionColumns() transition.Columns {
	return transition.Columns{Subject: c.Columns.Subject, Timepoint: c.Columns.Timepoint, Result: c.Columns.Result}
}

// Strategy returns the parsed lookup strategy, defaulting to indexed.
func (c Config) Strategy() transition.Strategy {
	s, err := transition.ParseStrategy(c.Lookup)
	if err != nil {
		return transition.LookupIndexed
	}
	return s
}

// ExportFormats returns the parsed export formats.
func (c Config) ExportFormats() []datasetapi.Format {
	out := make([]datasetapi.Format, 0, len(c.Export.Formats))
	for _, f := range c.Export.Formats {
		if parsed, err := datasetapi.ParseFormat(f); err == nil {
			out = append(out, parsed)
		}
	}
	return out
}

// BlobConfig overlays the blob section on the environment configuration.
func (c Config) BlobConfig() blob.Config {
	cfg := blob.ConfigFromEnv()
	if c.Blob.Driver != "" {
		cfg.Driver = blob.Driver(strings.ToLower(c.Blob.Driver))
	}
	if c.Blob.FSRoot != "" {
		cfg.FSRoot = c.Blob.FSRoot
	}
	s3 := c.Blob.S3
	if s3.Bucket != "" {
		cfg.S3.Bucket = s3.Bucket
	}
	if s3.Region != "" {
		cfg.S3.Region = s3.Region
	}
	if s3.Endpoint != "" {
		cfg.S3.Endpoint = s3.Endpoint
	}
	if s3.PathStyle {
		cfg.S3.PathStyle = true
	}
	return cfg
}
