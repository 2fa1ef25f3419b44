/*
scheduler.go - Calendar trigger for report runs

PURPOSE:
  Runs the reports on a cron schedule (default "0 8 1 * *", 08:00 on the
  1st of every month) using today's date as the reference date.

DESIGN:
  - robfig/cron/v3 with the standard 5-field parser
  - cron.Recover turns a panicking job into a logged error
  - cron.SkipIfStillRunning drops a tick while the previous run is busy
  - a failed run calls OnFailure and is returned from Trigger, so the
    failure is re-signalled rather than swallowed

USAGE:
  scheduler := NewScheduler(runner, "0 8 1 * *", time.UTC, logger)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  <-scheduler.Stop().Done()

SEE ALSO:
  - handlers.go: GenerateReports (on-demand trigger)
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/warp/stage5-reports/report"
)

// DefaultSchedule runs at 08:00 on the first day of every month.
const DefaultSchedule = "0 8 1 * *"

// Scheduler triggers report runs from a cron expression.
type Scheduler struct {
	Runner   ReportRunner
	Spec     string
	Location *time.Location

	// OnFailure is called with every failed result. Defaults to an error log.
	OnFailure func(ctx context.Context, result report.RunResult)

	logger zerolog.Logger
	cron   *cron.Cron
	entry  cron.EntryID
	mu     sync.Mutex
}

// NewScheduler creates a scheduler; Start must be called to begin.
func NewScheduler(runner ReportRunner, spec string, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		Runner:   runner,
		Spec:     spec,
		Location: loc,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
	s.OnFailure = s.logFailure
	return s
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	adapter := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(s.Location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	entry, err := c.AddFunc(s.Spec, s.fire)
	if err != nil {
		return fmt.Errorf("failed to add cron job %q: %w", s.Spec, err)
	}

	s.cron = c
	s.entry = entry
	c.Start()

	s.logger.Info().
		Str("schedule", s.Spec).
		Str("timezone", s.Location.String()).
		Time("next", c.Entry(entry).Next).
		Msg("scheduler started")
	return nil
}

// Stop stops the cron loop. The returned context is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	ctx := s.cron.Stop()
	s.cron = nil
	s.logger.Info().Msg("scheduler stopped")
	return ctx
}

// Next returns the next scheduled run, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Trigger performs one scheduled run. A failed run is reported to
// OnFailure and returned as an error.
func (s *Scheduler) Trigger(ctx context.Context) error {
	s.logger.Info().Msg("scheduled report run started")

	result := s.Runner.Run(ctx, nil)
	if result.Success {
		s.logger.Info().Str("date", result.Date).Int("reports", result.ReportsGenerated).
			Msg("scheduled report run completed")
		return nil
	}

	if s.OnFailure != nil {
		s.OnFailure(ctx, result)
	}
	cause := result.Err
	if cause == nil {
		cause = errors.New(result.Error)
	}
	return fmt.Errorf("scheduled report run for %s failed: %w", result.Date, cause)
}

func (s *Scheduler) fire() {
	ctx := s.logger.WithContext(context.Background())
	// No retry; OnFailure has already reported the error.
	_ = s.Trigger(ctx)
}

func (s *Scheduler) logFailure(_ context.Context, result report.RunResult) {
	s.logger.Error().
		Str("date", result.Date).
		Str("category", report.Category(result.Err)).
		Str("error", result.Error).
		Msg("scheduled report run failed")
}

// =============================================================================
// CRON LOGGER
// =============================================================================

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
