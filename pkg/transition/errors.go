package transition

import (
	"errors"
	"fmt"

	"transitions/pkg/frame"
)

var (
	// ErrColumnNotFound reports a role column missing from the frame.
	ErrColumnNotFound = frame.ErrColumnNotFound
	// ErrDuplicateColumnName reports an output column name already in use.
	ErrDuplicateColumnName = frame.ErrDuplicateColumn
	// ErrInvalidColumnType reports a column that cannot serve its role.
	ErrInvalidColumnType = errors.New("transition: invalid column type")
	// ErrInvalidArgument reports a negative cap or modulate, a nil frame or
	// roles sharing a column.
	ErrInvalidArgument = errors.New("transition: invalid argument")
	// ErrTimepointNotFound reports a subject/timepoint combination absent
	// from the data.
	ErrTimepointNotFound = errors.New("transition: timepoint not found")
)

// Role names the part a column plays in an observation.
type Role uint8

const (
	RoleSubject Role = iota + 1
	RoleTimepoint
	RoleResult
)

func (r Role) String() string {
	switch r {
	case RoleSubject:
		return "subject"
	case RoleTimepoint:
		return "timepoint"
	case RoleResult:
		return "result"
	default:
		return "unknown"
	}
}

// ColumnError describes a role column that failed validation.
type ColumnError struct {
	Role   Role
	Column string
	Reason string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s column `%s` %s", e.Role, e.Column, e.Reason)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// OpError records the public operation that failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("transition: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// TimepointError identifies the subject and timepoint a lookup failed on.
type TimepointError struct {
	Subject   int
	Timepoint frame.NullDate
}

func (e TimepointError) Error() string {
	return fmt.Sprintf("timepoint %s not found for subject %d", e.Timepoint, e.Subject)
}

func (e TimepointError) Unwrap() error { return ErrTimepointNotFound }

// Warning is a non-fatal diagnostic raised while coercing a column.
type Warning struct {
	Role    Role
	Column  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s column `%s`: %s", w.Role, w.Column, w.Message)
}
