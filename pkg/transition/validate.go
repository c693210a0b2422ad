package transition

import (
	"fmt"
	"math"

	"transitions/pkg/frame"
)

const binaryResultReason = "neither an ordered factor nor an integer column with all values either 0 or 1"

// validateColumn checks that the named column can play role and returns a
// working copy coerced to the role's canonical kind. The frame is not
// modified.
func validateColumn(f *frame.Frame, role Role, name string) (frame.Column, []Warning, error) {
	col, err := f.Lookup(name)
	if err != nil {
		return frame.Column{}, nil, err
	}
	switch role {
	case RoleSubject:
		return validateSubject(col)
	case RoleTimepoint:
		return validateTimepoint(col)
	case RoleResult:
		return validateResult(col)
	default:
		return frame.Column{}, nil, fmt.Errorf("%w: unknown role %d", ErrInvalidArgument, role)
	}
}

func invalidColumn(role Role, col frame.Column, reason string) error {
	return &ColumnError{Role: role, Column: col.Name(), Reason: reason, Err: ErrInvalidColumnType}
}

func validateSubject(col frame.Column) (frame.Column, []Warning, error) {
	if col.Kind() != frame.KindInteger && col.Kind() != frame.KindFactor {
		return frame.Column{}, nil, invalidColumn(RoleSubject, col, "not an integer or factor")
	}
	if col.HasNA() {
		return frame.Column{}, nil, invalidColumn(RoleSubject, col, "contains missing subject identifiers")
	}
	return col, nil, nil
}

func validateTimepoint(col frame.Column) (frame.Column, []Warning, error) {
	switch col.Kind() {
	case frame.KindDate:
		return col, nil, nil
	case frame.KindInteger:
		return toDates(col), []Warning{coerced(RoleTimepoint, col, "converted from integer to date")}, nil
	case frame.KindNumeric:
		for i := 0; i < col.Len(); i++ {
			if !col.IsNA(i) && !isWhole(col.Float(i)) {
				return frame.Column{}, nil, invalidColumn(RoleTimepoint, col, "not of class date; numeric values are not whole days")
			}
		}
		return toDates(col), []Warning{coerced(RoleTimepoint, col, "converted from numeric to date")}, nil
	default:
		return frame.Column{}, nil, invalidColumn(RoleTimepoint, col, "not of class date")
	}
}

func validateResult(col frame.Column) (frame.Column, []Warning, error) {
	var warnings []Warning
	switch col.Kind() {
	case frame.KindFactor:
		if col.Ordered() {
			return col, nil, nil
		}
		return frame.Column{}, nil, invalidColumn(RoleResult, col, binaryResultReason)
	case frame.KindNumeric:
		for i := 0; i < col.Len(); i++ {
			if !col.IsNA(i) && !isWhole(col.Float(i)) {
				return frame.Column{}, nil, invalidColumn(RoleResult, col, binaryResultReason)
			}
		}
		col = toIntegers(col)
		warnings = append(warnings, coerced(RoleResult, col, "type converted from numeric to integer"))
	case frame.KindInteger:
	default:
		return frame.Column{}, nil, invalidColumn(RoleResult, col, binaryResultReason)
	}
	for i := 0; i < col.Len(); i++ {
		if col.IsNA(i) {
			continue
		}
		if v := col.Int(i); v != 0 && v != 1 {
			return frame.Column{}, nil, invalidColumn(RoleResult, col, binaryResultReason)
		}
	}
	return col, warnings, nil
}

func coerced(role Role, col frame.Column, message string) Warning {
	return Warning{Role: role, Column: col.Name(), Message: message}
}

func isWhole(v float64) bool {
	return !math.IsInf(v, 0) && v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32
}

func toDates(col frame.Column) frame.Column {
	values := make([]frame.NullDate, col.Len())
	for i := range values {
		if !col.IsNA(i) {
			values[i] = frame.Day(frame.Date(col.Int(i)))
		}
	}
	return frame.NullDates(col.Name(), values)
}

func toIntegers(col frame.Column) frame.Column {
	values := make([]frame.NullInt, col.Len())
	for i := range values {
		values[i] = col.NullInt(i)
	}
	return frame.NullIntegers(col.Name(), values)
}
