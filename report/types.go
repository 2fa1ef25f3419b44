package report

import (
	"github.com/warp/stage5-reports/period"
)

// =============================================================================
// REPORT VARIANTS
// =============================================================================

// Kind names a report variant.
type Kind string

const (
	KindMonthly    Kind = "monthly"
	KindCumulative Kind = "cumulative"
	KindQuarterly  Kind = "quarterly"
)

// Kinds lists every variant in presentation order.
var Kinds = []Kind{KindMonthly, KindCumulative, KindQuarterly}

// Window is one report to fetch: a date range, the file it becomes and the
// label used in the notification body.
type Window struct {
	Kind     Kind
	Start    period.Date
	End      period.Date
	Filename string
	Label    string
}

// Range returns the window bounds.
func (w Window) Range() period.Range { return period.Range{Start: w.Start, End: w.End} }

// =============================================================================
// ROW DATA
// =============================================================================

// Row is one source record keyed by column name.
type Row = map[string]any

// Table is a fetched row set. Columns keeps the order the store returned
// them in; it may be empty for hand-built tables.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// GeneratedReport is a rendered window, ready to attach.
type GeneratedReport struct {
	Window   Window
	Data     []byte
	Filename string
	Records  int
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// Attachment is a file sent with an email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Email is everything the notifier needs to deliver one message.
type Email struct {
	Subject     string
	HTMLBody    string
	Attachments []Attachment
	Recipients  []string
}

// =============================================================================
// RUN RESULT
// =============================================================================

// RunResult is the structured outcome of one run. It is returned to the
// caller and never persisted.
type RunResult struct {
	Success           bool   `json:"success"`
	Date              string `json:"date"`
	ReportsGenerated  int    `json:"reports_generated"`
	MonthlyRecords    int    `json:"monthly_records"`
	CumulativeRecords int    `json:"cumulative_records"`
	QuarterlyRecords  int    `json:"quarterly_records"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`

	// Err is the underlying failure, kept for callers that need errors.Is.
	Err error `json:"-"`
}

// Failed builds a failure result for ref.
func Failed(ref period.Date, err error) RunResult {
	return RunResult{
		Success: false,
		Date:    ref.String(),
		Error:   err.Error(),
		Err:     err,
	}
}

// Records returns the record count stored for kind.
func (r RunResult) Records(kind Kind) int {
	switch kind {
	case KindMonthly:
		return r.MonthlyRecords
	case KindCumulative:
		return r.CumulativeRecords
	case KindQuarterly:
		return r.QuarterlyRecords
	}
	return 0
}

// SetRecords stores the record count for kind.
func (r *RunResult) SetRecords(kind Kind, n int) {
	switch kind {
	case KindMonthly:
		r.MonthlyRecords = n
	case KindCumulative:
		r.CumulativeRecords = n
	case KindQuarterly:
		r.QuarterlyRecords = n
	}
}
