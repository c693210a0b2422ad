package transition

import (
	"fmt"
	"slices"
	"strings"

	"transitions/pkg/frame"
)

// Strategy selects how predecessor lookups are resolved. Both strategies
// produce identical results.
type Strategy uint8

const (
	// LookupIndexed groups timepoints per subject once and binary-searches
	// them; O(n log n) per pass.
	LookupIndexed Strategy = iota
	// LookupScan rescans every row for each lookup; O(n^2) per pass.
	LookupScan
)

func (s Strategy) String() string {
	if s == LookupScan {
		return "scan"
	}
	return "indexed"
}

// ParseStrategy resolves "indexed" (or empty) and "scan".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "indexed":
		return LookupIndexed, nil
	case "scan":
		return LookupScan, nil
	default:
		return 0, fmt.Errorf("%w: unknown lookup strategy %q", ErrInvalidArgument, s)
	}
}

type observation struct {
	subject   int
	timepoint frame.NullDate
	result    frame.NullInt
}

type cell struct {
	subject   int
	timepoint frame.Date
}

type lookup interface {
	// dates returns the subject's timepoints in ascending order.
	dates(subject int) []frame.Date
	// previous returns the timepoint preceding tp for subject.
	previous(subject int, tp frame.Date) (frame.NullDate, error)
	// resultAt returns the result of the first row matching subject and tp.
	resultAt(subject int, tp frame.Date) frame.NullInt
}

func newLookup(strategy Strategy, rows []observation) lookup {
	if strategy == LookupScan {
		return scanLookup{rows: rows}
	}
	return newIndexLookup(rows)
}

// precedingDate locates tp in the sorted timeline and returns its predecessor.
func precedingDate(timeline []frame.Date, subject int, tp frame.Date) (frame.NullDate, error) {
	i, found := slices.BinarySearch(timeline, tp)
	if !found {
		return frame.NullDate{}, TimepointError{Subject: subject, Timepoint: frame.Day(tp)}
	}
	if i == 0 {
		return frame.NullDate{}, nil
	}
	return frame.Day(timeline[i-1]), nil
}

type scanLookup struct {
	rows []observation
}

func (s scanLookup) dates(subject int) []frame.Date {
	var out []frame.Date
	for _, row := range s.rows {
		if row.subject == subject && row.timepoint.Valid {
			out = append(out, row.timepoint.Date)
		}
	}
	slices.Sort(out)
	return out
}

func (s scanLookup) previous(subject int, tp frame.Date) (frame.NullDate, error) {
	return precedingDate(s.dates(subject), subject, tp)
}

func (s scanLookup) resultAt(subject int, tp frame.Date) frame.NullInt {
	for _, row := range s.rows {
		if row.subject == subject && row.timepoint.Valid && row.timepoint.Date == tp {
			return row.result
		}
	}
	return frame.NullInt{}
}

type indexLookup struct {
	timelines map[int][]frame.Date
	results   map[cell]frame.NullInt
}

func newIndexLookup(rows []observation) indexLookup {
	idx := indexLookup{
		timelines: make(map[int][]frame.Date),
		results:   make(map[cell]frame.NullInt, len(rows)),
	}
	for _, row := range rows {
		if !row.timepoint.Valid {
			continue
		}
		idx.timelines[row.subject] = append(idx.timelines[row.subject], row.timepoint.Date)
		key := cell{subject: row.subject, timepoint: row.timepoint.Date}
		if _, seen := idx.results[key]; !seen {
			idx.results[key] = row.result
		}
	}
	for _, timeline := range idx.timelines {
		slices.Sort(timeline)
	}
	return idx
}

func (x indexLookup) dates(subject int) []frame.Date {
	return slices.Clone(x.timelines[subject])
}

func (x indexLookup) previous(subject int, tp frame.Date) (frame.NullDate, error) {
	return precedingDate(x.timelines[subject], subject, tp)
}

func (x indexLookup) resultAt(subject int, tp frame.Date) frame.NullInt {
	return x.results[cell{subject: subject, timepoint: tp}]
}
