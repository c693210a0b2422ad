package frame

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewRejectsDuplicateAndMismatchedColumns(t *testing.T) {
	if _, err := New(Integers("a", 1, 2), Integers("a", 3, 4)); !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("expected duplicate column error, got %v", err)
	}
	if _, err := New(Integers("a", 1, 2), Integers("b", 3)); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
	f, err := New()
	if err != nil {
		t.Fatalf("empty frame: %v", err)
	}
	if f.NRows() != 0 || f.NCols() != 0 {
		t.Fatalf("expected empty frame, got %dx%d", f.NRows(), f.NCols())
	}
}

func TestWithColumnLeavesReceiverUntouched(t *testing.T) {
	base, err := New(Integers("subject", 1, 2), Dates("timepoint", 10, 11))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	grown, err := base.WithColumn(Integers("extra", 7, 8))
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if base.NCols() != 2 || base.Has("extra") {
		t.Fatalf("receiver mutated: %v", base.Names())
	}
	if got := grown.Names(); len(got) != 3 || got[2] != "extra" {
		t.Fatalf("unexpected names %v", got)
	}
	if _, err := grown.WithColumn(Integers("extra", 0, 0)); !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("expected duplicate column error, got %v", err)
	}
	if _, err := grown.WithColumn(Integers("short", 0)); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestReplaceAndLookup(t *testing.T) {
	base, err := New(Numerics("result", 0, 1), Strings("note", "a", "b"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := base.Lookup("missing"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	replaced, err := base.Replace(Integers("result", 0, 1))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	col, _ := replaced.Column("result")
	if col.Kind() != KindInteger {
		t.Fatalf("expected integer column after replace, got %s", col.Kind())
	}
	orig, _ := base.Column("result")
	if orig.Kind() != KindNumeric {
		t.Fatalf("receiver mutated: %s", orig.Kind())
	}
	if names := replaced.Names(); names[0] != "result" || names[1] != "note" {
		t.Fatalf("column order changed: %v", names)
	}
	if _, err := base.Replace(Integers("other", 1, 2)); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRowsRenderValues(t *testing.T) {
	grade, err := FactorOf("grade", []string{"low", "high"}, true, "high", "")
	if err != nil {
		t.Fatalf("FactorOf: %v", err)
	}
	d, _ := ParseDate("2024-03-01")
	f, err := New(
		Integers("subject", 4, 5),
		NullDates("timepoint", []NullDate{Day(d), {}}),
		grade,
		Numerics("score", 1.5, math.NaN()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rows := f.Rows()
	if rows[0]["subject"] != 4 || rows[0]["timepoint"] != "2024-03-01" || rows[0]["grade"] != "high" || rows[0]["score"] != 1.5 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1]["timepoint"] != nil || rows[1]["grade"] != nil || rows[1]["score"] != nil {
		t.Fatalf("expected missing values rendered as nil, got %+v", rows[1])
	}
}

func TestFactorRejectsBadCodes(t *testing.T) {
	if _, err := Factor("f", []string{"a"}, false, 0, 1); !errors.Is(err, ErrFactorCode) {
		t.Fatalf("expected factor code error, got %v", err)
	}
	if _, err := FactorOf("f", []string{"a"}, false, "b"); !errors.Is(err, ErrFactorCode) {
		t.Fatalf("expected factor label error, got %v", err)
	}
}

func TestDateRoundTrip(t *testing.T) {
	d := DateOf(time.Date(2000, 1, 2, 23, 59, 0, 0, time.UTC))
	if d != 10958 {
		t.Fatalf("expected 10958 days, got %d", d)
	}
	if d.String() != "2000-01-02" {
		t.Fatalf("unexpected format %s", d)
	}
	parsed, err := ParseDate("2000-01-02")
	if err != nil || parsed != d {
		t.Fatalf("ParseDate = %d, %v", parsed, err)
	}
	if _, err := ParseDate("02/01/2000"); err == nil {
		t.Fatalf("expected parse error")
	}
	if (NullDate{}).String() != "NA" || Int(3).String() != "3" {
		t.Fatalf("unexpected null rendering")
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"integer", "Numeric", "DATE", "factor", "string"} {
		if _, err := ParseKind(name); err != nil {
			t.Fatalf("ParseKind(%q): %v", name, err)
		}
	}
	if _, err := ParseKind("blob"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
