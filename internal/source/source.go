// Package source loads observation tables from CSV files and SQL databases
// into frames.
package source

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"transitions/pkg/frame"
)

// Source produces an observation frame.
type Source interface {
	Load(ctx context.Context) (*frame.Frame, error)
}

// ColumnHint overrides type inference for one column.
type ColumnHint struct {
	Kind    string   `yaml:"kind" json:"kind"`
	Levels  []string `yaml:"levels,omitempty" json:"levels,omitempty"`
	Ordered bool     `yaml:"ordered,omitempty" json:"ordered,omitempty"`
}

// Schema maps column names to hints. Columns without a hint are inferred.
type Schema map[string]ColumnHint

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "null", "NULL":
		return true
	default:
		return false
	}
}

// buildColumn converts raw cells into a typed column. Cells flagged in na
// (or recognised by IsMissing) are missing. With an empty hint the kind is
// inferred as integer, then numeric, then ISO date, then string. Date hints
// also accept whole day counts since 1970-01-01.
func buildColumn(name string, cells []string, na []bool, hint ColumnHint) (frame.Column, error) {
	missing := make([]bool, len(cells))
	for i, cell := range cells {
		missing[i] = (na != nil && na[i]) || IsMissing(cell)
		cells[i] = strings.TrimSpace(cell)
	}
	kind := strings.ToLower(strings.TrimSpace(hint.Kind))
	if kind == "" {
		kind = infer(cells, missing).String()
	}
	parsed, err := frame.ParseKind(kind)
	if err != nil {
		return frame.Column{}, fmt.Errorf("source: column %q: %w", name, err)
	}
	switch parsed {
	case frame.KindInteger:
		values := make([]frame.NullInt, len(cells))
		for i, cell := range cells {
			if missing[i] {
				continue
			}
			v, err := parseInt(cell)
			if err != nil {
				return frame.Column{}, fmt.Errorf("source: column %q row %d: %q is not an integer", name, i+1, cell)
			}
			values[i] = frame.Int(v)
		}
		return frame.NullIntegers(name, values), nil
	case frame.KindNumeric:
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if missing[i] {
				values[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return frame.Column{}, fmt.Errorf("source: column %q row %d: %q is not a number", name, i+1, cell)
			}
			values[i] = v
		}
		return frame.Numerics(name, values...), nil
	case frame.KindDate:
		values := make([]frame.NullDate, len(cells))
		for i, cell := range cells {
			if missing[i] {
				continue
			}
			d, err := frame.ParseDate(cell)
			if err != nil {
				days, intErr := parseInt(cell)
				if intErr != nil {
					return frame.Column{}, fmt.Errorf("source: column %q row %d: %w", name, i+1, err)
				}
				d = frame.Date(days)
			}
			values[i] = frame.Day(d)
		}
		return frame.NullDates(name, values), nil
	case frame.KindFactor:
		labels := make([]string, len(cells))
		for i, cell := range cells {
			if !missing[i] {
				labels[i] = cell
			}
		}
		levels := hint.Levels
		if len(levels) == 0 {
			levels = distinctLevels(labels)
		}
		col, err := frame.FactorOf(name, levels, hint.Ordered, labels...)
		if err != nil {
			return frame.Column{}, fmt.Errorf("source: %w", err)
		}
		return col, nil
	default:
		values := make([]string, len(cells))
		copy(values, cells)
		return frame.Strings(name, values...), nil
	}
}

func infer(cells []string, missing []bool) frame.Kind {
	integer, numeric, date := true, true, true
	for i, cell := range cells {
		if missing[i] {
			continue
		}
		if integer {
			if _, err := parseInt(cell); err != nil {
				integer = false
			}
		}
		if numeric {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
		}
		if date {
			if _, err := frame.ParseDate(cell); err != nil {
				date = false
			}
		}
	}
	switch {
	case integer:
		return frame.KindInteger
	case numeric:
		return frame.KindNumeric
	case date:
		return frame.KindDate
	default:
		return frame.KindString
	}
}

func parseInt(cell string) (int, error) {
	v, err := strconv.ParseInt(cell, 10, 0)
	return int(v), err
}

// distinctLevels returns the distinct non-empty labels, numerically ordered
// when every label is an integer and lexically otherwise.
func distinctLevels(labels []string) []string {
	var levels []string
	for _, label := range labels {
		if label != "" {
			levels = append(levels, label)
		}
	}
	numeric := true
	for _, level := range levels {
		if _, err := parseInt(level); err != nil {
			numeric = false
			break
		}
	}
	if numeric {
		slices.SortFunc(levels, func(a, b string) int {
			x, _ := parseInt(a)
			y, _ := parseInt(b)
			return x - y
		})
	} else {
		slices.Sort(levels)
	}
	return slices.Compact(levels)
}
