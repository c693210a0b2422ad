package frame

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind identifies the storage type of a column.
type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindNumeric
	KindDate
	KindFactor
	KindString
)

var kindNames = map[Kind]string{
	KindInteger: "integer",
	KindNumeric: "numeric",
	KindDate:    "date",
	KindFactor:  "factor",
	KindString:  "string",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a kind from its textual name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if name == lower {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("frame: unknown column kind %q", s)
}

// ErrFactorCode reports a factor code outside the level list.
var ErrFactorCode = errors.New("frame: factor code out of range")

// Column is an immutable, named sequence of values of a single kind with a
// missing-value mask. Factor columns store 0-based codes into Levels.
type Column struct {
	name    string
	kind    Kind
	ints    []int
	floats  []float64
	strs    []string
	levels  []string
	ordered bool
	na      []bool
}

// Integers builds an integer column.
func Integers(name string, values ...int) Column {
	return Column{name: name, kind: KindInteger, ints: append([]int(nil), values...)}
}

// NullIntegers builds an integer column where invalid entries are missing.
func NullIntegers(name string, values []NullInt) Column {
	ints, na := splitNullInts(values)
	return Column{name: name, kind: KindInteger, ints: ints, na: na}
}

// Numerics builds a numeric column; NaN entries are missing.
func Numerics(name string, values ...float64) Column {
	floats := append([]float64(nil), values...)
	var na []bool
	for i, v := range floats {
		if math.IsNaN(v) {
			if na == nil {
				na = make([]bool, len(floats))
			}
			na[i] = true
		}
	}
	return Column{name: name, kind: KindNumeric, floats: floats, na: na}
}

// Dates builds a date column.
func Dates(name string, values ...Date) Column {
	ints := make([]int, len(values))
	for i, d := range values {
		ints[i] = int(d)
	}
	return Column{name: name, kind: KindDate, ints: ints}
}

// NullDates builds a date column where invalid entries are missing.
func NullDates(name string, values []NullDate) Column {
	ints := make([]int, len(values))
	var na []bool
	for i, v := range values {
		if !v.Valid {
			if na == nil {
				na = make([]bool, len(values))
			}
			na[i] = true
			continue
		}
		ints[i] = int(v.Date)
	}
	return Column{name: name, kind: KindDate, ints: ints, na: na}
}

// Strings builds a string column.
func Strings(name string, values ...string) Column {
	return Column{name: name, kind: KindString, strs: append([]string(nil), values...)}
}

// Factor builds a categorical column from 0-based level codes.
func Factor(name string, levels []string, ordered bool, codes ...int) (Column, error) {
	values := make([]NullInt, len(codes))
	for i, code := range codes {
		values[i] = Int(code)
	}
	return NullFactor(name, levels, ordered, values)
}

// NullFactor builds a categorical column where invalid codes are missing.
func NullFactor(name string, levels []string, ordered bool, codes []NullInt) (Column, error) {
	for i, code := range codes {
		if code.Valid && (code.Int < 0 || code.Int >= len(levels)) {
			return Column{}, fmt.Errorf("%w: column %q row %d code %d (levels %d)", ErrFactorCode, name, i, code.Int, len(levels))
		}
	}
	ints, na := splitNullInts(codes)
	return Column{
		name:    name,
		kind:    KindFactor,
		ints:    ints,
		levels:  append([]string(nil), levels...),
		ordered: ordered,
		na:      na,
	}, nil
}

// FactorOf builds a categorical column from labels. Empty labels are missing.
func FactorOf(name string, levels []string, ordered bool, labels ...string) (Column, error) {
	position := make(map[string]int, len(levels))
	for i, level := range levels {
		position[level] = i
	}
	codes := make([]NullInt, len(labels))
	for i, label := range labels {
		if label == "" {
			continue
		}
		code, ok := position[label]
		if !ok {
			return Column{}, fmt.Errorf("%w: column %q row %d label %q not a level", ErrFactorCode, name, i, label)
		}
		codes[i] = Int(code)
	}
	return NullFactor(name, levels, ordered, codes)
}

func splitNullInts(values []NullInt) ([]int, []bool) {
	ints := make([]int, len(values))
	var na []bool
	for i, v := range values {
		if !v.Valid {
			if na == nil {
				na = make([]bool, len(values))
			}
			na[i] = true
			continue
		}
		ints[i] = v.Int
	}
	return ints, na
}

// WithMissing returns a copy with the given rows marked missing.
func (c Column) WithMissing(rows ...int) Column {
	out := c
	out.na = make([]bool, c.Len())
	copy(out.na, c.na)
	for _, row := range rows {
		if row >= 0 && row < len(out.na) {
			out.na[row] = true
		}
	}
	return out
}

// WithName returns a copy of the column under a different name.
func (c Column) WithName(name string) Column {
	out := c
	out.name = name
	return out
}

func (c Column) Name() string { return c.name }

func (c Column) Kind() Kind { return c.kind }

// Ordered reports whether a factor column carries an ordered level scale.
func (c Column) Ordered() bool { return c.kind == KindFactor && c.ordered }

// Levels returns a copy of the factor levels.
func (c Column) Levels() []string {
	if len(c.levels) == 0 {
		return nil
	}
	return append([]string(nil), c.levels...)
}

// Len returns the number of rows.
func (c Column) Len() int {
	switch c.kind {
	case KindNumeric:
		return len(c.floats)
	case KindString:
		return len(c.strs)
	default:
		return len(c.ints)
	}
}

// IsNA reports whether row i is missing.
func (c Column) IsNA(i int) bool {
	return c.na != nil && c.na[i]
}

// HasNA reports whether any row is missing.
func (c Column) HasNA() bool {
	for _, missing := range c.na {
		if missing {
			return true
		}
	}
	return false
}

// Int returns the integer value, date day count or factor code at row i.
func (c Column) Int(i int) int {
	if c.kind == KindNumeric {
		return int(c.floats[i])
	}
	return c.ints[i]
}

// Float returns the value at row i as a float64.
func (c Column) Float(i int) float64 {
	if c.kind == KindNumeric {
		return c.floats[i]
	}
	return float64(c.ints[i])
}

// Str returns the string value at row i of a string column.
func (c Column) Str(i int) string {
	return c.strs[i]
}

// Date returns the date at row i of a date column.
func (c Column) Date(i int) Date {
	return Date(c.ints[i])
}

// NullInt returns row i as a nullable integer.
func (c Column) NullInt(i int) NullInt {
	if c.IsNA(i) {
		return NullInt{}
	}
	return Int(c.Int(i))
}

// NullDate returns row i of a date column as a nullable date.
func (c Column) NullDate(i int) NullDate {
	if c.IsNA(i) {
		return NullDate{}
	}
	return Day(c.Date(i))
}

// Label returns the level label at row i of a factor column.
func (c Column) Label(i int) string {
	if c.IsNA(i) {
		return ""
	}
	return c.levels[c.ints[i]]
}

// Value renders row i for serialization: dates as ISO strings, factors as
// level labels and missing values as nil.
func (c Column) Value(i int) any {
	if c.IsNA(i) {
		return nil
	}
	switch c.kind {
	case KindInteger:
		return c.ints[i]
	case KindNumeric:
		return c.floats[i]
	case KindDate:
		return Date(c.ints[i]).String()
	case KindFactor:
		return c.levels[c.ints[i]]
	case KindString:
		return c.strs[i]
	default:
		return nil
	}
}
