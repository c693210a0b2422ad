package frame

import (
	"fmt"
	"time"
)

// DateLayout is the textual layout used when dates are rendered or parsed.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Date counts whole days since 1970-01-01 UTC.
type Date int

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Date(midnight.Unix() / secondsPerDay)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("frame: parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

// NullInt is an integer that may be missing.
type NullInt struct {
	Int   int
	Valid bool
}

// Int wraps a present integer.
func Int(v int) NullInt { return NullInt{Int: v, Valid: true} }

func (n NullInt) String() string {
	if !n.Valid {
		return "NA"
	}
	return fmt.Sprintf("%d", n.Int)
}

// NullDate is a date that may be missing.
type NullDate struct {
	Date  Date
	Valid bool
}

// Day wraps a present date.
func Day(d Date) NullDate { return NullDate{Date: d, Valid: true} }

func (n NullDate) String() string {
	if !n.Valid {
		return "NA"
	}
	return n.Date.String()
}
