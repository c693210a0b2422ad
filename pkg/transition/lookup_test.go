package transition

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"transitions/pkg/frame"
)

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": LookupIndexed, "Indexed": LookupIndexed, " scan ": LookupScan} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseStrategy("btree"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestLookupPrecedingDate(t *testing.T) {
	rows := []observation{
		{subject: 1, timepoint: frame.Day(30), result: frame.Int(1)},
		{subject: 1, timepoint: frame.Day(10), result: frame.Int(0)},
		{subject: 2, timepoint: frame.Day(20), result: frame.Int(1)},
		{subject: 1, timepoint: frame.Day(20), result: frame.NullInt{}},
	}
	for _, strategy := range []Strategy{LookupIndexed, LookupScan} {
		t.Run(strategy.String(), func(t *testing.T) {
			l := newLookup(strategy, rows)
			if got := l.dates(1); !slices.Equal(got, []frame.Date{10, 20, 30}) {
				t.Fatalf("unexpected dates %v", got)
			}
			if prev, err := l.previous(1, 10); err != nil || prev.Valid {
				t.Fatalf("earliest: expected missing, got %v, %v", prev, err)
			}
			if prev, err := l.previous(1, 30); err != nil || prev != frame.Day(20) {
				t.Fatalf("latest: expected day 20, got %v, %v", prev, err)
			}
			if prev, err := l.previous(2, 20); err != nil || prev.Valid {
				t.Fatalf("subject 2: expected missing, got %v, %v", prev, err)
			}
			_, err := l.previous(2, 30)
			var tpErr TimepointError
			if !errors.Is(err, ErrTimepointNotFound) || !errors.As(err, &tpErr) || tpErr.Subject != 2 {
				t.Fatalf("expected timepoint error for subject 2, got %v", err)
			}
			if got := l.resultAt(1, 10); got != frame.Int(0) {
				t.Fatalf("resultAt(1, 10) = %v", got)
			}
			if got := l.resultAt(1, 20); got.Valid {
				t.Fatalf("resultAt(1, 20) should be missing, got %v", got)
			}
			if got := l.resultAt(3, 10); got.Valid {
				t.Fatalf("resultAt unknown subject should be missing, got %v", got)
			}
		})
	}
}

func TestLookupDuplicatesResolveToFirstRow(t *testing.T) {
	rows := []observation{
		{subject: 1, timepoint: frame.Day(5), result: frame.Int(1)},
		{subject: 1, timepoint: frame.Day(5), result: frame.Int(0)},
	}
	for _, strategy := range []Strategy{LookupIndexed, LookupScan} {
		if got := newLookup(strategy, rows).resultAt(1, 5); got != frame.Int(1) {
			t.Fatalf("%s: expected first-seen result, got %v", strategy, got)
		}
	}
}

func TestLookupStrategiesAgree(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.IntN(40)
		seen := make(map[cell]bool)
		var rows []observation
		for len(rows) < n {
			c := cell{subject: rng.IntN(5), timepoint: frame.Date(rng.IntN(30))}
			if seen[c] {
				continue
			}
			seen[c] = true
			result := frame.Int(rng.IntN(2))
			if rng.IntN(6) == 0 {
				result = frame.NullInt{}
			}
			rows = append(rows, observation{subject: c.subject, timepoint: frame.Day(c.timepoint), result: result})
		}
		indexed, scan := newLookup(LookupIndexed, rows), newLookup(LookupScan, rows)
		for _, row := range rows {
			a, errA := indexed.previous(row.subject, row.timepoint.Date)
			b, errB := scan.previous(row.subject, row.timepoint.Date)
			if a != b || (errA == nil) != (errB == nil) {
				t.Fatalf("trial %d: previous disagree %v/%v vs %v/%v", trial, a, errA, b, errB)
			}
			if a.Valid && indexed.resultAt(row.subject, a.Date) != scan.resultAt(row.subject, a.Date) {
				t.Fatalf("trial %d: resultAt disagree", trial)
			}
		}
	}
}
