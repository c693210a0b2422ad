package datasetapi

import "transitions/pkg/frame"

// SchemaFor describes the columns of f in result-schema form. Dates are
// strings with format "date"; factors are strings carrying their levels.
func SchemaFor(f *frame.Frame) []Column {
	if f == nil {
		return nil
	}
	cols := f.Columns()
	schema := make([]Column, len(cols))
	for i, col := range cols {
		schema[i] = ColumnFor(col)
	}
	return schema
}

// ColumnFor describes a single frame column.
func ColumnFor(col frame.Column) Column {
	out := Column{Name: col.Name()}
	switch col.Kind() {
	case frame.KindInteger:
		out.Type = TypeInteger
	case frame.KindNumeric:
		out.Type = TypeNumber
	case frame.KindDate:
		out.Type = TypeString
		out.Format = "date"
	case frame.KindFactor:
		out.Type = TypeString
		out.Format = "factor"
		if col.Ordered() {
			out.Format = "ordered_factor"
		}
		out.Levels = col.Levels()
	default:
		out.Type = TypeString
	}
	return out
}

// ResultFromFrame renders f as a RunResult with schema and rows.
func ResultFromFrame(f *frame.Frame) RunResult {
	if f == nil {
		return RunResult{}
	}
	return RunResult{Schema: SchemaFor(f), Rows: f.Rows()}
}
