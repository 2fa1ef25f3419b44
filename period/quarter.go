package period

import (
	"fmt"
	"time"
)

// =============================================================================
// QUARTER - Calendar-aligned fiscal quarters
// =============================================================================

// Quarter is one of the four fixed quarters of a year:
// Q1 Jan 1 - Mar 31, Q2 Apr 1 - Jun 30, Q3 Jul 1 - Sep 30, Q4 Oct 1 - Dec 31.
type Quarter struct {
	Start  Date
	End    Date
	Number int // 1-4
}

// quarterBounds holds the first month and last day of each quarter, indexed by number-1.
var quarterBounds = [4]struct {
	startMonth time.Month
	endMonth   time.Month
	endDay     int
}{
	{time.January, time.March, 31},
	{time.April, time.June, 30},
	{time.July, time.September, 30},
	{time.October, time.December, 31},
}

// NewQuarter builds quarter n (1-4) of year.
func NewQuarter(year, n int) (Quarter, error) {
	if n < 1 || n > 4 {
		return Quarter{}, fmt.Errorf("quarter number %d out of range 1-4", n)
	}
	b := quarterBounds[n-1]
	return Quarter{
		Start:  NewDate(year, b.startMonth, 1),
		End:    NewDate(year, b.endMonth, b.endDay),
		Number: n,
	}, nil
}

// QuarterOf returns the quarter containing d.
func QuarterOf(d Date) Quarter {
	n := (int(d.Month())-1)/3 + 1
	q, _ := NewQuarter(d.Year(), n)
	return q
}

// QuartersOf returns Q1..Q4 of year. Together they cover every day of the year exactly once.
func QuartersOf(year int) [4]Quarter {
	var qs [4]Quarter
	for i := range qs {
		qs[i], _ = NewQuarter(year, i+1)
	}
	return qs
}

// IsQuarterEnd reports whether d is the last day of its own quarter.
// A quarter's first day (e.g. April 1) is never a quarter end.
func IsQuarterEnd(d Date) bool {
	return d.Equal(QuarterOf(d).End)
}

// PreviousQuarter returns the quarter immediately before the one containing d.
// Dates in Q1 roll back to Q4 (Oct 1 - Dec 31) of the prior year.
func PreviousQuarter(d Date) Quarter {
	return QuarterOf(d).Previous()
}

// Previous returns the quarter before q.
func (q Quarter) Previous() Quarter {
	if q.Number == 1 {
		prev, _ := NewQuarter(q.Start.Year()-1, 4)
		return prev
	}
	prev, _ := NewQuarter(q.Start.Year(), q.Number-1)
	return prev
}

// Year is the calendar year the quarter belongs to.
func (q Quarter) Year() int { return q.Start.Year() }

// Contains returns true if d is within [Start, End].
func (q Quarter) Contains(d Date) bool {
	return d.AfterOrEqual(q.Start) && d.BeforeOrEqual(q.End)
}

// Range returns the quarter as a plain date range.
func (q Quarter) Range() Range { return Range{Start: q.Start, End: q.End} }

// String returns e.g. "Q3 2025".
func (q Quarter) String() string {
	return fmt.Sprintf("Q%d %d", q.Number, q.Year())
}
