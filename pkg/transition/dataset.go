package transition

import (
	"fmt"

	"transitions/pkg/frame"
)

// Columns names the subject, timepoint and result columns of a frame.
type Columns struct {
	Subject   string
	Timepoint string
	Result    string
}

// DefaultColumns returns the conventional column names.
func DefaultColumns() Columns {
	return Columns{Subject: "subject", Timepoint: "timepoint", Result: "result"}
}

// Dataset is a validated, read-only view of the observations in a frame:
// three index-aligned sequences of subject, timepoint and result.
type Dataset struct {
	rows      []observation
	subject   frame.Column
	timepoint frame.Column
	result    frame.Column
	lookup    lookup
}

// NewDataset validates the role columns of f and builds the typed view.
// Coercions are reported as warnings; f itself is never modified.
func NewDataset(f *frame.Frame, cols Columns, strategy Strategy) (*Dataset, []Warning, error) {
	if f == nil {
		return nil, nil, fmt.Errorf("%w: nil frame", ErrInvalidArgument)
	}
	if cols.Subject == cols.Timepoint || cols.Subject == cols.Result || cols.Timepoint == cols.Result {
		return nil, nil, fmt.Errorf("%w: roles must name distinct columns (subject `%s`, timepoint `%s`, result `%s`)",
			ErrInvalidArgument, cols.Subject, cols.Timepoint, cols.Result)
	}
	ds := &Dataset{}
	var warnings []Warning
	for _, r := range []struct {
		role Role
		name string
		dst  *frame.Column
	}{
		{RoleSubject, cols.Subject, &ds.subject},
		{RoleTimepoint, cols.Timepoint, &ds.timepoint},
		{RoleResult, cols.Result, &ds.result},
	} {
		col, warns, err := validateColumn(f, r.role, r.name)
		if err != nil {
			return nil, nil, err
		}
		*r.dst = col
		warnings = append(warnings, warns...)
	}

	ds.rows = make([]observation, f.NRows())
	for i := range ds.rows {
		ds.rows[i] = observation{
			subject:   ds.subject.Int(i),
			timepoint: ds.timepoint.NullDate(i),
			result:    ds.result.NullInt(i),
		}
	}
	ds.lookup = newLookup(strategy, ds.rows)
	return ds, warnings, nil
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.rows) }

// SubjectColumn returns the validated subject column.
func (d *Dataset) SubjectColumn() frame.Column { return d.subject }

// TimepointColumn returns the validated, date-typed timepoint column.
func (d *Dataset) TimepointColumn() frame.Column { return d.timepoint }

// ResultColumn returns the validated result column.
func (d *Dataset) ResultColumn() frame.Column { return d.result }

// DatesForSubject returns every timepoint recorded for subject, ascending.
func (d *Dataset) DatesForSubject(subject int) []frame.Date {
	return d.lookup.dates(subject)
}

// PreviousTimepoint returns the timepoint immediately preceding tp for
// subject, or a missing date when tp is the subject's earliest. It fails with
// ErrTimepointNotFound if tp is not one of the subject's timepoints.
func (d *Dataset) PreviousTimepoint(subject int, tp frame.NullDate) (frame.NullDate, error) {
	if !tp.Valid {
		return frame.NullDate{}, TimepointError{Subject: subject, Timepoint: tp}
	}
	return d.lookup.previous(subject, tp.Date)
}

// ResultAt returns the result recorded for subject at tp, or a missing value
// when no such row exists. Duplicate rows resolve to the first one seen.
func (d *Dataset) ResultAt(subject int, tp frame.NullDate) frame.NullInt {
	if !tp.Valid {
		return frame.NullInt{}
	}
	return d.lookup.resultAt(subject, tp.Date)
}

// PreviousDates returns, per row in input order, the preceding timepoint of
// that row's subject.
func (d *Dataset) PreviousDates() ([]frame.NullDate, error) {
	out := make([]frame.NullDate, len(d.rows))
	for i, row := range d.rows {
		prev, err := d.PreviousTimepoint(row.subject, row.timepoint)
		if err != nil {
			return nil, err
		}
		out[i] = prev
	}
	return out, nil
}

// PreviousResults returns, per row in input order, the result at the
// preceding timepoint of that row's subject.
func (d *Dataset) PreviousResults() ([]frame.NullInt, error) {
	dates, err := d.PreviousDates()
	if err != nil {
		return nil, err
	}
	out := make([]frame.NullInt, len(d.rows))
	for i, row := range d.rows {
		out[i] = d.ResultAt(row.subject, dates[i])
	}
	return out, nil
}

// PreviousResultColumn wraps PreviousResults in a column of the same type as
// the result column; ordered factors keep their levels.
func (d *Dataset) PreviousResultColumn(name string) (frame.Column, error) {
	values, err := d.PreviousResults()
	if err != nil {
		return frame.Column{}, err
	}
	if d.result.Kind() == frame.KindFactor {
		return frame.NullFactor(name, d.result.Levels(), d.result.Ordered(), values)
	}
	return frame.NullIntegers(name, values), nil
}

// Transitions returns, per row in input order, the transition from the
// subject's previous result to the row's result. See Value.
func (d *Dataset) Transitions(cap, modulate int) ([]frame.NullInt, error) {
	if err := checkAdjustment(cap, modulate); err != nil {
		return nil, err
	}
	previous, err := d.PreviousResults()
	if err != nil {
		return nil, err
	}
	out := make([]frame.NullInt, len(d.rows))
	for i, row := range d.rows {
		out[i], _ = Value(previous[i], row.result, cap, modulate)
	}
	return out, nil
}
