package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/warp/stage5-reports/config"
	"github.com/warp/stage5-reports/logging"
	"github.com/warp/stage5-reports/notify"
	"github.com/warp/stage5-reports/render"
	"github.com/warp/stage5-reports/report"
	"github.com/warp/stage5-reports/runner"
	"github.com/warp/stage5-reports/store/sqldb"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *sqldb.Store
	runner *runner.Runner

	// outbox holds the emails of a dry run; nil otherwise.
	outbox *notify.Memory
}

// loadConfig loads and validates configuration and builds the logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

// newApp opens the data store and builds the runner. A dry run records the
// email instead of sending it.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, dryRun bool) (*app, error) {
	store, err := sqldb.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if store.Dialect() == sqldb.DialectSQLite {
		if err := store.Migrate(ctx, cfg.ReportTable); err != nil {
			store.Close()
			return nil, err
		}
		logger.Warn().Msg("using SQLite data store, development only")
	}

	var (
		notifier runner.Notifier
		outbox   *notify.Memory
	)
	if dryRun {
		outbox = notify.NewMemory()
		notifier = outbox
	} else {
		notifier, err = notify.NewSendGrid(notify.Config{
			Token:    cfg.SendGridToken,
			Endpoint: cfg.SendGridEndpoint,
			Sender:   cfg.SenderEmail,
			Timeout:  cfg.MailTimeout,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	source := runner.SourceFunc(func(ctx context.Context) (runner.Fetcher, error) {
		session, err := store.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	})

	r, err := runner.New(runner.Options{
		Source:     source,
		Renderer:   render.NewCSV(),
		Notifier:   notifier,
		Selector:   report.NewSelector(cfg.CumulativeStart),
		Queries:    cfg.Queries(store.Dialect()),
		Recipients: cfg.Recipients,
		Location:   cfg.Location,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build runner: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store, runner: r, outbox: outbox}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close data store")
	}
}
