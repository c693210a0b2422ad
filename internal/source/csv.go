package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"transitions/pkg/frame"
)

// CSV loads a header-first CSV table from Reader, or from Path when Reader is
// nil.
type CSV struct {
	Path   string
	Reader io.Reader
	Schema Schema
	// Comma overrides the field delimiter; zero means ','.
	Comma rune
}

// Load implements Source.
func (c CSV) Load(ctx context.Context) (*frame.Frame, error) {
	r := c.Reader
	if r == nil {
		if strings.TrimSpace(c.Path) == "" {
			return nil, errors.New("source: csv path required")
		}
		file, err := os.Open(c.Path)
		if err != nil {
			return nil, fmt.Errorf("source: open csv: %w", err)
		}
		defer func() { _ = file.Close() }()
		r = file
	}
	reader := csv.NewReader(r)
	if c.Comma != 0 {
		reader.Comma = c.Comma
	}
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("source: csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("source: read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	table := make([][]string, len(header))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: read csv: %w", err)
		}
		for i := range header {
			table[i] = append(table[i], record[i])
		}
	}
	return assemble(header, table, nil, c.Schema)
}

func assemble(names []string, table [][]string, na [][]bool, schema Schema) (*frame.Frame, error) {
	cols := make([]frame.Column, len(names))
	for i, name := range names {
		var missing []bool
		if na != nil {
			missing = na[i]
		}
		col, err := buildColumn(name, table[i], missing, schema[name])
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return f, nil
}
