package period

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granular calendar date (the anchor of every report window)
// =============================================================================

// DateLayout is the only accepted textual form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time component. The zero value is
// January 1, year 1.
type Date struct {
	t time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the clock part of t, keeping t's calendar day in its own location.
func FromTime(t time.Time) Date { return NewDate(t.Year(), t.Month(), t.Day()) }

// Today returns the current day in loc according to now. A nil loc means UTC.
func Today(now func() time.Time, loc *time.Location) Date {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now().In(loc))
}

// ParseDate parses a strict YYYY-MM-DD string. Out of range months or days
// (2025-13-40, 2025-02-30) are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return FromTime(t), nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format(DateLayout) }

// Format formats the date with a time layout ("January 02, 2006", "2006_01").
func (d Date) Format(layout string) string { return d.t.Format(layout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH UTILITIES
// =============================================================================

func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return Date{t: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date { return StartOfMonth(d.Year(), d.Month()) }

// MonthEnd returns the last day of d's month.
func (d Date) MonthEnd() Date { return EndOfMonth(d.Year(), d.Month()) }

// PreviousMonthStart returns the first day of the month preceding d's month.
// January rolls back to December 1 of the prior year.
func PreviousMonthStart(d Date) Date {
	if d.Month() == time.January {
		return NewDate(d.Year()-1, time.December, 1)
	}
	return NewDate(d.Year(), d.Month()-1, 1)
}
