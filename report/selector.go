package report

import (
	"fmt"

	"github.com/warp/stage5-reports/period"
)

// Selector decides which report windows apply to a reference date.
type Selector struct {
	// CumulativeStart is the fixed first day of the cumulative window.
	CumulativeStart period.Date
}

// NewSelector creates a selector for the given cumulative start date.
func NewSelector(cumulativeStart period.Date) *Selector {
	return &Selector{CumulativeStart: cumulativeStart}
}

// Select returns the windows to fetch for ref, in presentation order:
// monthly, cumulative, then quarterly when ref is a quarter end.
func (s *Selector) Select(ref period.Date) []Window {
	windows := []Window{
		s.Monthly(ref),
		s.Cumulative(ref),
	}
	if period.IsQuarterEnd(ref) {
		windows = append(windows, s.Quarterly(ref))
	}
	return windows
}

// Monthly covers the calendar month before ref's month. Only Start is used
// as a filter value by the default query; the source rows carry a
// precomputed report month.
func (s *Selector) Monthly(ref period.Date) Window {
	start := period.PreviousMonthStart(ref)
	return Window{
		Kind:     KindMonthly,
		Start:    start,
		End:      start.MonthEnd(),
		Filename: fmt.Sprintf("monthly_report_%s.csv", start.Format("2006_01")),
		Label:    fmt.Sprintf("Monthly Report - %s", start.Format("January 2006")),
	}
}

// Cumulative covers [CumulativeStart, ref].
func (s *Selector) Cumulative(ref period.Date) Window {
	return Window{
		Kind:     KindCumulative,
		Start:    s.CumulativeStart,
		End:      ref,
		Filename: fmt.Sprintf("cumulative_report_%s.csv", ref.Format("2006_01")),
		Label:    fmt.Sprintf("Cumulative Report - Since %s", ordinalDate(s.CumulativeStart)),
	}
}

// Quarterly covers the quarter before the one containing ref.
func (s *Selector) Quarterly(ref period.Date) Window {
	q := period.PreviousQuarter(ref)
	return Window{
		Kind:     KindQuarterly,
		Start:    q.Start,
		End:      q.End,
		Filename: fmt.Sprintf("quarterly_report_%d_Q%d.csv", q.Year(), q.Number),
		Label:    fmt.Sprintf("Quarterly Report - %s (%s to %s)", q, q.Start, q.End),
	}
}

// ordinalDate formats d as "1st of August 2025".
func ordinalDate(d period.Date) string {
	return fmt.Sprintf("%d%s of %s", d.Day(), ordinalSuffix(d.Day()), d.Format("January 2006"))
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
