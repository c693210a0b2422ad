// Package frame provides a minimal in-memory table of named, typed columns.
// Frames are immutable: every mutator returns a new frame and leaves the
// receiver untouched.
package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnNotFound reports a lookup for a column name the frame lacks.
	ErrColumnNotFound = errors.New("frame: column not found")
	// ErrDuplicateColumn reports a column name that already exists.
	ErrDuplicateColumn = errors.New("frame: duplicate column name")
	// ErrLengthMismatch reports a column whose length differs from the frame.
	ErrLengthMismatch = errors.New("frame: column length mismatch")
)

// Frame is an ordered collection of equal-length, uniquely named columns.
type Frame struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New assembles a frame from columns.
func New(columns ...Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if _, exists := f.index[col.Name()]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name())
		}
		if i == 0 {
			f.rows = col.Len()
		} else if col.Len() != f.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, col.Name(), col.Len(), f.rows)
		}
		f.index[col.Name()] = i
	}
	f.columns = append([]Column(nil), columns...)
	return f, nil
}

// NRows returns the row count.
func (f *Frame) NRows() int { return f.rows }

// NCols returns the column count.
func (f *Frame) NCols() int { return len(f.columns) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, col := range f.columns {
		names[i] = col.Name()
	}
	return names
}

// Columns returns the columns in order.
func (f *Frame) Columns() []Column {
	return append([]Column(nil), f.columns...)
}

// Has reports whether a column with the given name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, false
	}
	return f.columns[i], true
}

// Lookup returns the named column or ErrColumnNotFound.
func (f *Frame) Lookup(name string) (Column, error) {
	col, ok := f.Column(name)
	if !ok {
		return Column{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return col, nil
}

// WithColumn returns a new frame with col appended.
func (f *Frame) WithColumn(col Column) (*Frame, error) {
	if f.Has(col.Name()) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name())
	}
	if len(f.columns) > 0 && col.Len() != f.rows {
		return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, col.Name(), col.Len(), f.rows)
	}
	return New(append(f.Columns(), col)...)
}

// Replace returns a new frame with the same-named column swapped for col.
func (f *Frame) Replace(col Column) (*Frame, error) {
	i, ok := f.index[col.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, col.Name())
	}
	if col.Len() != f.rows {
		return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, col.Name(), col.Len(), f.rows)
	}
	columns := f.Columns()
	columns[i] = col
	return New(columns...)
}

// Rows renders each row as a map keyed by column name. See Column.Value.
func (f *Frame) Rows() []map[string]any {
	rows := make([]map[string]any, f.rows)
	for r := range rows {
		row := make(map[string]any, len(f.columns))
		for _, col := range f.columns {
			row[col.Name()] = col.Value(r)
		}
		rows[r] = row
	}
	return rows
}
