package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"transitions/pkg/frame"
)

// SQL loads the result set of Query into a frame. Integer, float and
// timestamp columns keep their native kind unless Schema says otherwise;
// text columns are inferred like CSV cells.
type SQL struct {
	DB     *sql.DB
	Query  string
	Args   []any
	Schema Schema
}

// Load implements Source.
func (s SQL) Load(ctx context.Context) (*frame.Frame, error) {
	if s.DB == nil {
		return nil, errors.New("source: sql database required")
	}
	if strings.TrimSpace(s.Query) == "" {
		return nil, errors.New("source: sql query required")
	}
	rows, err := s.DB.QueryContext(ctx, s.Query, s.Args...)
	if err != nil {
		return nil, fmt.Errorf("source: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source: columns: %w", err)
	}
	table := make([][]string, len(names))
	na := make([][]bool, len(names))
	natives := make([]nativeKind, len(names))
	dest := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("source: scan: %w", err)
		}
		for i, v := range dest {
			cell, kind := renderCell(v)
			table[i] = append(table[i], cell)
			na[i] = append(na[i], v == nil)
			natives[i] = natives[i].merge(kind)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: rows: %w", err)
	}

	schema := make(Schema, len(names))
	for i, name := range names {
		hint, ok := s.Schema[name]
		if !ok {
			hint = ColumnHint{Kind: natives[i].kind()}
		}
		schema[name] = hint
	}
	return assemble(names, table, na, schema)
}

// nativeKind tracks the driver types seen in a column.
type nativeKind uint8

const (
	nativeNone nativeKind = iota
	nativeInt
	nativeFloat
	nativeTime
	nativeText
)

func (n nativeKind) merge(next nativeKind) nativeKind {
	switch {
	case next == nativeNone || n == next:
		return n
	case n == nativeNone:
		return next
	case (n == nativeInt && next == nativeFloat) || (n == nativeFloat && next == nativeInt):
		return nativeFloat
	default:
		return nativeText
	}
}

// kind returns the frame kind implied by the native type, or "" to infer.
func (n nativeKind) kind() string {
	switch n {
	case nativeInt:
		return frame.KindInteger.String()
	case nativeFloat:
		return frame.KindNumeric.String()
	case nativeTime:
		return frame.KindDate.String()
	default:
		return ""
	}
}

func renderCell(v any) (string, nativeKind) {
	switch x := v.(type) {
	case nil:
		return "", nativeNone
	case int64:
		return strconv.FormatInt(x, 10), nativeInt
	case int32:
		return strconv.FormatInt(int64(x), 10), nativeInt
	case int:
		return strconv.Itoa(x), nativeInt
	case bool:
		if x {
			return "1", nativeInt
		}
		return "0", nativeInt
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nativeFloat
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nativeFloat
	case time.Time:
		return frame.DateOf(x).String(), nativeTime
	case []byte:
		return string(x), nativeText
	case string:
		return x, nativeText
	default:
		return fmt.Sprint(x), nativeText
	}
}
