/*
main.go - Application entry point

PURPOSE:
  Starts the Stage 5 completion report service. Configuration comes from
  the environment (and an optional .env file); see package config.

COMMANDS:
  serve          HTTP trigger + cron scheduler (default)
  run            One report run, then exit; non-zero exit on failure
                 --date YYYY-MM-DD  reference date (default today)
                 --dry-run          write attachments to --out instead of emailing
  check-config   Validate configuration and exit
                 --ping  also check the data store is reachable

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (a running job is waited for)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the data store

EXAMPLES:
  ./server
  ./server run --date 2025-09-30
  DB_CONNECTION_STRING=sqlite://dev.db ./server serve

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Schedule trigger
  - runner/runner.go: Report run
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/stage5-reports/api"
	"github.com/warp/stage5-reports/notify"
	"github.com/warp/stage5-reports/period"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Stage 5 completion report service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run the report schedule",
		RunE:  runServe,
	}

	var opts runOptions
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and send the reports once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}
	runCmd.Flags().StringVar(&opts.date, "date", "", "reference date (YYYY-MM-DD), default today")
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "do not send the email")
	runCmd.Flags().StringVar(&opts.out, "out", ".", "directory for dry run attachments")

	var ping bool
	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checkConfig(cmd, ping)
		},
	}
	checkCmd.Flags().BoolVar(&ping, "ping", false, "also check the data store is reachable")

	rootCmd.AddCommand(serveCmd, runCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(cmd.Context())

	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("data store not reachable at startup")
	}

	var scheduler *api.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = api.NewScheduler(a.runner, cfg.Schedule, cfg.Location, logger)
		if err := scheduler.Start(); err != nil {
			return err
		}
	} else {
		logger.Info().Msg("scheduler disabled")
	}

	router := api.NewRouter(api.NewHandler(a.runner), api.RouterOptions{
		Logger:         logger,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
	})
	if cfg.APIKey == "" {
		logger.Warn().Msg("API_KEY not set, /api routes are unauthenticated")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a run includes queries and the mail call
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn().Msg("scheduled run still in progress at shutdown")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// =============================================================================
// RUN
// =============================================================================

type runOptions struct {
	date   string
	dryRun bool
	out    string
}

func runOnce(cmd *cobra.Command, opts runOptions) error {
	var ref *period.Date
	if opts.date != "" {
		d, err := period.ParseDate(opts.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", opts.date)
		}
		ref = &d
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := logger.WithContext(cmd.Context())

	a, err := newApp(ctx, cfg, logger, opts.dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.runner.Run(ctx, ref)

	if a.outbox != nil {
		if err := writeOutbox(a.outbox, opts.out, logger); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("report run failed: %s", result.Error)
	}
	return nil
}

// writeOutbox saves the attachments and body of a dry run to dir.
func writeOutbox(outbox *notify.Memory, dir string, logger zerolog.Logger) error {
	email, ok := outbox.Last()
	if !ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, att := range email.Attachments {
		path := filepath.Join(dir, att.Filename)
		if err := os.WriteFile(path, att.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("dry run attachment written")
	}
	return os.WriteFile(filepath.Join(dir, "summary.html"), []byte(email.HTMLBody), 0o644)
}

// =============================================================================
// CHECK CONFIG
// =============================================================================

func checkConfig(cmd *cobra.Command, ping bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "configuration OK\n")
	fmt.Fprintf(out, "  cumulative start: %s\n", cfg.CumulativeStart)
	fmt.Fprintf(out, "  recipients:       %d\n", len(cfg.Recipients))
	fmt.Fprintf(out, "  report table:     %s\n", cfg.ReportTable)
	fmt.Fprintf(out, "  schedule:         %s (%s, enabled=%t)\n", cfg.Schedule, cfg.Location, cfg.SchedulerEnabled)
	fmt.Fprintf(out, "  mail timeout:     %s\n", cfg.MailTimeout)

	if !ping {
		return nil
	}

	ctx := logger.WithContext(cmd.Context())
	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.store.Ping(pingCtx); err != nil {
		return err
	}
	fmt.Fprintf(out, "  data store:       reachable\n")
	return nil
}
