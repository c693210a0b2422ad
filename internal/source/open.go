package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Spec describes where observations come from.
type Spec struct {
	Driver string
	// Path is the CSV file or SQLite database path.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN    string
	Query  string
	Schema Schema
	// Reader supplies CSV input directly, bypassing Path.
	Reader io.Reader
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open resolves spec into a Source. The returned closer releases any database
// handle and must be called once the source is no longer needed.
func Open(ctx context.Context, spec Spec) (Source, io.Closer, error) {
	driver := strings.ToLower(strings.TrimSpace(spec.Driver))
	if driver == "" {
		driver = DriverCSV
	}
	if driver != DriverCSV && strings.TrimSpace(spec.Query) == "" {
		return nil, nil, fmt.Errorf("source: %s driver requires a query", driver)
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverCSV:
		return CSV{Path: spec.Path, Reader: spec.Reader, Schema: spec.Schema}, nopCloser{}, nil
	case DriverSQLite:
		db, err = OpenSQLite(spec.Path)
	case DriverPostgres:
		db, err = OpenPostgres(ctx, spec.DSN)
	default:
		return nil, nil, errors.New("source: unsupported driver " + spec.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	return SQL{DB: db, Query: spec.Query, Schema: spec.Schema}, db, nil
}
