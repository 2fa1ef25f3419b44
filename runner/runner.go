/*
runner.go - One report run, end to end

PURPOSE:
  Resolves the report windows for a reference date, fetches each one over a
  single data store session, renders the non-empty ones and sends them in
  one email. Every outcome, including a recovered panic, is returned as a
  report.RunResult; Run never returns an error or panics.

FLOW:
  1. ref (or today, from the injected clock)
  2. Selector.Select(ref)          -> monthly, cumulative[, quarterly]
  3. Source.Connect                -> one session for the whole run
  4. per window: bind, Fetch, skip if empty, Render
  5. none rendered                 -> ErrNoData, notifier not called
  6. Notifier.Send(subject, summary, attachments)

CONCURRENCY:
  A Runner holds no mutable state; the scheduler and the HTTP trigger may
  call Run at the same time.

SEE ALSO:
  - report/selector.go: window rules
  - render/summary.go: email body and subject
*/
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/stage5-reports/period"
	"github.com/warp/stage5-reports/render"
	"github.com/warp/stage5-reports/report"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Fetcher runs report queries on one data store session.
type Fetcher interface {
	Fetch(ctx context.Context, query string, args ...any) (report.Table, error)
	Close() error
}

// Source opens a data store session for one run.
type Source interface {
	Connect(ctx context.Context) (Fetcher, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Fetcher, error)

func (f SourceFunc) Connect(ctx context.Context) (Fetcher, error) { return f(ctx) }

// Renderer serializes a fetched table.
type Renderer interface {
	Render(table report.Table, filename string) ([]byte, error)
}

// Notifier delivers the report email.
type Notifier interface {
	Send(ctx context.Context, email report.Email) error
}

// =============================================================================
// RUNNER
// =============================================================================

// Options configures a Runner. Now defaults to time.Now, Location to UTC and
// Renderer to render.NewCSV(). Location decides which calendar day "today" is.
type Options struct {
	Source     Source
	Renderer   Renderer
	Notifier   Notifier
	Selector   *report.Selector
	Queries    report.Queries
	Recipients []string
	Now        func() time.Time
	Location   *time.Location
}

// Runner orchestrates report runs.
type Runner struct {
	source     Source
	renderer   Renderer
	notifier   Notifier
	selector   *report.Selector
	queries    report.Queries
	recipients []string
	now        func() time.Time
	location   *time.Location
}

// New validates opts and builds a Runner.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Source == nil:
		return nil, errors.New("runner: source is required")
	case opts.Notifier == nil:
		return nil, errors.New("runner: notifier is required")
	case opts.Selector == nil:
		return nil, errors.New("runner: selector is required")
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewCSV()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{
		source:     opts.Source,
		renderer:   opts.Renderer,
		notifier:   opts.Notifier,
		selector:   opts.Selector,
		queries:    opts.Queries,
		recipients: opts.Recipients,
		now:        opts.Now,
		location:   opts.Location,
	}, nil
}

// Today returns the reference date used when a run has none: the current
// day in the runner's location.
func (r *Runner) Today() period.Date {
	return period.Today(r.now, r.location)
}

// Run executes one report run for ref, or for today when ref is nil.
func (r *Runner) Run(ctx context.Context, ref *period.Date) (result report.RunResult) {
	date := r.Today()
	if ref != nil {
		date = *ref
	}

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", uuid.NewString()).
		Str("date", date.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("report run panicked: %v", p)
			logger.Error().Err(err).Msg("report run failed")
			result = report.Failed(date, err)
		}
	}()

	logger.Info().Msg("report run started")

	result, err := r.run(ctx, date)
	if err != nil {
		logger.Error().Err(err).Str("category", report.Category(err)).Msg("report run failed")
		return report.Failed(date, err)
	}

	event := logger.Info().Int("reports", result.ReportsGenerated)
	for _, kind := range report.Kinds {
		event = event.Int(string(kind)+"_records", result.Records(kind))
	}
	event.Msg("report run complete")
	return result
}

func (r *Runner) run(ctx context.Context, date period.Date) (report.RunResult, error) {
	logger := zerolog.Ctx(ctx)
	result := report.RunResult{Date: date.String()}

	windows := r.selector.Select(date)

	fetcher, err := r.source.Connect(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close data store session")
		}
	}()

	generated := make([]report.GeneratedReport, 0, len(windows))
	for _, w := range windows {
		rep, ok, err := r.generate(ctx, fetcher, w)
		if err != nil {
			return result, err
		}
		if !ok {
			logger.Info().Str("kind", string(w.Kind)).Stringer("window", w.Range()).
				Msg("no rows for report window, skipping")
			continue
		}
		result.SetRecords(w.Kind, rep.Records)
		generated = append(generated, rep)
	}

	if len(generated) == 0 {
		return result, report.ErrNoData
	}

	email, err := r.compose(date, generated)
	if err != nil {
		return result, err
	}
	if err := r.notifier.Send(ctx, email); err != nil {
		if !errors.Is(err, report.ErrDelivery) {
			err = fmt.Errorf("%w: %w", report.ErrDelivery, err)
		}
		return result, err
	}

	result.Success = true
	result.ReportsGenerated = len(generated)
	result.Message = fmt.Sprintf("Successfully generated %d reports for %s", len(generated), date.Format(render.LongDateLayout))
	return result, nil
}

// generate fetches and renders one window. ok is false for an empty window.
func (r *Runner) generate(ctx context.Context, fetcher Fetcher, w report.Window) (report.GeneratedReport, bool, error) {
	q, err := r.queries.For(w.Kind)
	if err != nil {
		return report.GeneratedReport{}, false, err
	}
	args, err := q.Bind(w)
	if err != nil {
		return report.GeneratedReport{}, false, err
	}

	table, err := fetcher.Fetch(ctx, q.SQL, args...)
	if err != nil {
		var qe *report.QueryError
		if errors.As(err, &qe) && qe.Kind == "" {
			qe.Kind = w.Kind
		}
		return report.GeneratedReport{}, false, err
	}
	if table.Empty() {
		return report.GeneratedReport{}, false, nil
	}

	data, err := r.renderer.Render(table, w.Filename)
	if err != nil {
		return report.GeneratedReport{}, false, err
	}

	return report.GeneratedReport{
		Window:   w,
		Data:     data,
		Filename: w.Filename,
		Records:  table.Len(),
	}, true, nil
}

func (r *Runner) compose(date period.Date, generated []report.GeneratedReport) (report.Email, error) {
	body, err := render.Summary(date, generated)
	if err != nil {
		return report.Email{}, &report.RenderError{Filename: "summary", Err: err}
	}

	attachments := make([]report.Attachment, 0, len(generated))
	for _, g := range generated {
		attachments = append(attachments, report.Attachment{
			Filename:    g.Filename,
			ContentType: render.ContentType,
			Data:        g.Data,
		})
	}

	return report.Email{
		Subject:     render.Subject(date),
		HTMLBody:    body,
		Attachments: attachments,
		Recipients:  r.recipients,
	}, nil
}
