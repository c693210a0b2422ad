package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transitions/internal/blob"
	"transitions/pkg/datasetapi"
	"transitions/pkg/transition"
)

const job = `
source:
  driver: sqlite
  path: obs.db
  query: SELECT patient, visit, grade FROM obs
  schema:
    grade:
      kind: factor
      levels: [none, mild, severe]
      ordered: true
columns:
  subject: patient
  timepoint: visit
  result: grade
cap: 1
modulate: 2
output: change
lookup: scan
export:
  formats: [html]
blob:
  driver: s3
  s3:
    bucket: artifacts
    path_style: true
`

func TestParseJob(t *testing.T) {
	cfg, err := Parse([]byte(job))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.TransitionColumns() != (transition.Columns{Subject: "patient", Timepoint: "visit", Result: "grade"}) {
		t.Fatalf("unexpected columns %+v", cfg.Columns)
	}
	if cfg.Cap != 1 || cfg.Modulate != 2 || cfg.Output != "change" || cfg.Strategy() != transition.LookupScan {
		t.Fatalf("unexpected adjustments %+v", cfg)
	}
	hint := cfg.Source.Schema["grade"]
	if hint.Kind != "factor" || !hint.Ordered || len(hint.Levels) != 3 {
		t.Fatalf("unexpected schema hint %+v", hint)
	}
	spec := cfg.SourceSpec()
	if spec.Driver != "sqlite" || spec.Path != "obs.db" || !strings.HasPrefix(spec.Query, "SELECT") {
		t.Fatalf("unexpected source spec %+v", spec)
	}
	if formats := cfg.ExportFormats(); len(formats) != 1 || formats[0] != datasetapi.FormatHTML {
		t.Fatalf("unexpected formats %v", formats)
	}
	bc := cfg.BlobConfig()
	if bc.Driver != blob.DriverS3 || bc.S3.Bucket != "artifacts" || !bc.S3.PathStyle {
		t.Fatalf("unexpected blob config %+v", bc)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Columns.Subject != "subject" || cfg.Columns.Timepoint != "timepoint" || cfg.Columns.Result != "result" {
		t.Fatalf("unexpected default columns %+v", cfg.Columns)
	}
	if cfg.Source.Driver != "csv" || cfg.Strategy() != transition.LookupIndexed || len(cfg.ExportFormats()) != 2 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("capp: 2\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Source.Driver = "mongo" }, "unknown source driver"},
		{"sqlite query", func(c *Config) { c.Source.Driver = "sqlite" }, "source.query"},
		{"postgres dsn", func(c *Config) { c.Source.Driver = "postgres"; c.Source.Query = "q" }, "source.dsn"},
		{"cap", func(c *Config) { c.Cap = -1 }, "cap"},
		{"modulate", func(c *Config) { c.Modulate = -2 }, "modulate"},
		{"lookup", func(c *Config) { c.Lookup = "hash" }, "config:"},
		{"format", func(c *Config) { c.Export.Formats = []string{"png"} }, "export"},
		{"blob", func(c *Config) { c.Blob.Driver = "gcs" }, "blob driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadAppliesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte("source:\n  driver: postgres\n  query: SELECT 1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvPostgresDSN, "postgres://db/obs")
	t.Setenv(EnvSQLitePath, "ignored.db")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.DSN != "postgres://db/obs" || cfg.Source.Path != "" {
		t.Fatalf("unexpected source %+v", cfg.Source)
	}

	t.Setenv(EnvSourceDriver, "sqlite")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Driver != "sqlite" || cfg.Source.Path != "ignored.db" {
		t.Fatalf("expected sqlite path override, got %+v", cfg.Source)
	}

	t.Setenv(EnvSourceDriver, "")
	t.Setenv(EnvSourcePath, "obs.csv")
	cfg, err = Load("")
	if err != nil || cfg.Source.Path != "obs.csv" {
		t.Fatalf("expected csv path override, got %+v %v", cfg.Source, err)
	}

	if _, err := Load(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
