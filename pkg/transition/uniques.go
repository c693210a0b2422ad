package transition

import (
	"slices"

	"transitions/pkg/frame"
)

// Uniques holds the distinct values of the three role columns, each sorted
// ascending. Factor columns keep their levels.
type Uniques struct {
	Subjects   frame.Column
	Timepoints frame.Column
	Results    frame.Column
}

// UniqueSubjects returns the distinct subject identifiers (factor codes for
// categorical subjects), ascending.
func (d *Dataset) UniqueSubjects() []int {
	values := make([]int, 0, len(d.rows))
	for _, row := range d.rows {
		values = append(values, row.subject)
	}
	return sortedDistinct(values)
}

// UniqueTimepoints returns the distinct non-missing timepoints, ascending.
func (d *Dataset) UniqueTimepoints() []frame.Date {
	values := make([]frame.Date, 0, len(d.rows))
	for _, row := range d.rows {
		if row.timepoint.Valid {
			values = append(values, row.timepoint.Date)
		}
	}
	return sortedDistinct(values)
}

// UniqueResultLevels returns the distinct non-missing results, ascending;
// ordered factors sort by level order.
func (d *Dataset) UniqueResultLevels() []int {
	values := make([]int, 0, len(d.rows))
	for _, row := range d.rows {
		if row.result.Valid {
			values = append(values, row.result.Int)
		}
	}
	return sortedDistinct(values)
}

// Uniques collects the three distinct-value sets as typed columns named
// after the source columns.
func (d *Dataset) Uniques() (Uniques, error) {
	subjects, err := sameKind(d.subject, d.UniqueSubjects())
	if err != nil {
		return Uniques{}, err
	}
	results, err := sameKind(d.result, d.UniqueResultLevels())
	if err != nil {
		return Uniques{}, err
	}
	return Uniques{
		Subjects:   subjects,
		Timepoints: frame.Dates(d.timepoint.Name(), d.UniqueTimepoints()...),
		Results:    results,
	}, nil
}

func sameKind(like frame.Column, codes []int) (frame.Column, error) {
	if like.Kind() == frame.KindFactor {
		return frame.Factor(like.Name(), like.Levels(), like.Ordered(), codes...)
	}
	return frame.Integers(like.Name(), codes...), nil
}

func sortedDistinct[T int | frame.Date](values []T) []T {
	slices.Sort(values)
	return slices.Compact(values)
}
