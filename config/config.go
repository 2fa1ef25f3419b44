/*
Package config builds the explicit service configuration once at startup.

SOURCES:
  1. an optional .env file in the working directory (joho/godotenv); it
     never overrides variables already set in the environment
  2. the process environment, bound through spf13/viper

REQUIRED:
  DB_CONNECTION_STRING   postgres://... or sqlite://path
  CUMULATIVE_START_DATE  YYYY-MM-DD, first day of the cumulative report
  SENDGRID_BEARER_TOKEN  mail API token
  SENDGRID_ENDPOINT      mail API URL (https://api.sendgrid.com/v3/mail/send)
  SENDER_EMAIL           from address
  RECIPIENT_EMAILS       comma separated; blanks are dropped

OPTIONAL:
  PORT (8080), SCHEDULE ("0 8 1 * *"), SCHEDULE_TIMEZONE (UTC),
  SCHEDULER_ENABLED (true), REPORT_TABLE (public.stage_5_plots),
  MONTHLY_QUERY / CUMULATIVE_QUERY / QUARTERLY_QUERY, MAIL_TIMEOUT (30s),
  API_KEY, LOG_LEVEL (info), LOG_FORMAT (json|console),
  CORS_ALLOWED_ORIGINS (comma separated)

  SCHEDULE_TIMEZONE also decides which day "today" is for runs without a
  date. On SQLite the schema prefix of REPORT_TABLE is dropped.

QUERY OVERRIDES:
  Use '?' placeholders: one binds the window start, two bind start and end.
  Placeholders inside quotes or comments are not counted, nor are the jsonb
  operators ?| and ?&. A bare jsonb ? operator would be taken for a
  placeholder; use jsonb_exists() instead.

VALIDATION:
  Validate reports every problem at once, joined with errors.Join. Each is
  a *report.ConfigError so errors.Is(err, report.ErrConfiguration) holds.
*/
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/warp/stage5-reports/period"
	"github.com/warp/stage5-reports/report"
	"github.com/warp/stage5-reports/store/sqldb"
)

// Defaults for optional settings.
const (
	DefaultPort        = 8080
	DefaultSchedule    = "0 8 1 * *"
	DefaultTimezone    = "UTC"
	DefaultMailTimeout = 30 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
)

// Config is the validated service configuration.
type Config struct {
	DatabaseURL         string `mapstructure:"db_connection_string"`
	CumulativeStartDate string `mapstructure:"cumulative_start_date"`
	SendGridToken       string `mapstructure:"sendgrid_bearer_token"`
	SendGridEndpoint    string `mapstructure:"sendgrid_endpoint"`
	SenderEmail         string `mapstructure:"sender_email"`
	RecipientEmails     string `mapstructure:"recipient_emails"`

	Port             int           `mapstructure:"port"`
	Schedule         string        `mapstructure:"schedule"`
	ScheduleTimezone string        `mapstructure:"schedule_timezone"`
	SchedulerEnabled bool          `mapstructure:"scheduler_enabled"`
	ReportTable      string        `mapstructure:"report_table"`
	MonthlyQuery     string        `mapstructure:"monthly_query"`
	CumulativeQuery  string        `mapstructure:"cumulative_query"`
	QuarterlyQuery   string        `mapstructure:"quarterly_query"`
	MailTimeout      time.Duration `mapstructure:"mail_timeout"`
	APIKey           string        `mapstructure:"api_key"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	CORSOrigins      string        `mapstructure:"cors_allowed_origins"`

	// Derived by Validate.
	CumulativeStart period.Date    `mapstructure:"-"`
	Recipients      []string       `mapstructure:"-"`
	Location        *time.Location `mapstructure:"-"`
}

var keys = []string{
	"db_connection_string", "cumulative_start_date", "sendgrid_bearer_token",
	"sendgrid_endpoint", "sender_email", "recipient_emails",
	"port", "schedule", "schedule_timezone", "scheduler_enabled", "report_table",
	"monthly_query", "cumulative_query", "quarterly_query", "mail_timeout",
	"api_key", "log_level", "log_format", "cors_allowed_origins",
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds and validates a Config from the process environment only.
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("schedule", DefaultSchedule)
	v.SetDefault("schedule_timezone", DefaultTimezone)
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("report_table", sqldb.DefaultTable)
	v.SetDefault("mail_timeout", DefaultMailTimeout)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)

	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", strings.ToUpper(key), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &report.ConfigError{Key: "environment", Reason: fmt.Sprintf("could not be parsed: %v", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting and fills the derived fields.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(key, reason string) {
		errs = append(errs, &report.ConfigError{Key: key, Reason: reason})
	}

	required := []struct{ key, value string }{
		{"DB_CONNECTION_STRING", c.DatabaseURL},
		{"CUMULATIVE_START_DATE", c.CumulativeStartDate},
		{"SENDGRID_BEARER_TOKEN", c.SendGridToken},
		{"SENDGRID_ENDPOINT", c.SendGridEndpoint},
		{"SENDER_EMAIL", c.SenderEmail},
		{"RECIPIENT_EMAILS", c.RecipientEmails},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, report.MissingSetting(r.key))
		}
	}

	if c.CumulativeStartDate != "" {
		d, err := period.ParseDate(strings.TrimSpace(c.CumulativeStartDate))
		if err != nil {
			invalid("CUMULATIVE_START_DATE", "must be a YYYY-MM-DD date")
		} else {
			c.CumulativeStart = d
		}
	}

	if c.SendGridEndpoint != "" {
		if u, err := url.Parse(c.SendGridEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			invalid("SENDGRID_ENDPOINT", "must be an absolute URL")
		}
	}

	if c.SenderEmail != "" {
		if _, err := mail.ParseAddress(c.SenderEmail); err != nil {
			invalid("SENDER_EMAIL", "is not a valid email address")
		}
	}

	if c.RecipientEmails != "" {
		recipients := ParseRecipients(c.RecipientEmails)
		if len(recipients) == 0 {
			errs = append(errs, report.MissingSetting("RECIPIENT_EMAILS"))
		}
		for _, r := range recipients {
			if _, err := mail.ParseAddress(r); err != nil {
				invalid("RECIPIENT_EMAILS", fmt.Sprintf("contains an invalid address %q", r))
			}
		}
		c.Recipients = recipients
	}

	if c.Port <= 0 || c.Port > 65535 {
		invalid("PORT", "must be between 1 and 65535")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		invalid("SCHEDULE", fmt.Sprintf("is not a valid cron expression: %v", err))
	}
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		invalid("SCHEDULE_TIMEZONE", "is not a known time zone")
	} else {
		c.Location = loc
	}
	if c.MailTimeout <= 0 {
		invalid("MAIL_TIMEOUT", "must be a positive duration")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		invalid("LOG_LEVEL", "must be one of trace, debug, info, warn, error")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		invalid("LOG_FORMAT", "must be json or console")
	}

	for key, q := range map[string]string{
		"MONTHLY_QUERY":    c.MonthlyQuery,
		"CUMULATIVE_QUERY": c.CumulativeQuery,
		"QUARTERLY_QUERY":  c.QuarterlyQuery,
	} {
		if q == "" {
			continue
		}
		if n := report.CountPlaceholders(q); n != 1 && n != 2 {
			invalid(key, fmt.Sprintf("must have 1 or 2 '?' placeholders, found %d", n))
		}
	}

	return errors.Join(errs...)
}

// Queries returns the report queries for a store of dialect: the defaults
// for ReportTable (as named on that dialect) with any configured overrides
// applied. Overrides are used verbatim.
func (c *Config) Queries(dialect sqldb.Dialect) report.Queries {
	qs := sqldb.DefaultQueries(sqldb.TableFor(dialect, c.ReportTable))
	if c.MonthlyQuery != "" {
		qs.Monthly = report.Query{SQL: c.MonthlyQuery}
	}
	if c.CumulativeQuery != "" {
		qs.Cumulative = report.Query{SQL: c.CumulativeQuery}
	}
	if c.QuarterlyQuery != "" {
		qs.Quarterly = report.Query{SQL: c.QuarterlyQuery}
	}
	return qs
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

// ParseRecipients splits a comma separated address list, trimming entries
// and dropping blanks.
func ParseRecipients(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
