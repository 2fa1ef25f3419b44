package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/stage5-reports/config"
	"github.com/warp/stage5-reports/report"
	"github.com/warp/stage5-reports/store/sqldb"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_CONNECTION_STRING", "postgres://u:p@localhost:5432/reports")
	t.Setenv("CUMULATIVE_START_DATE", "2025-08-01")
	t.Setenv("SENDGRID_BEARER_TOKEN", "sg-token")
	t.Setenv("SENDGRID_ENDPOINT", "https://api.sendgrid.com/v3/mail/send")
	t.Setenv("SENDER_EMAIL", "reports@example.com")
	t.Setenv("RECIPIENT_EMAILS", " ops@example.com, ,pm@example.com ,")
}

func TestFromEnv_Defaults(t *testing.T) {
	// GIVEN: only the required settings
	setRequired(t)

	// WHEN: loading
	cfg, err := config.FromEnv()

	// THEN: derived fields are filled and optional settings defaulted
	require.NoError(t, err)
	assert.Equal(t, "2025-08-01", cfg.CumulativeStart.String())
	assert.Equal(t, []string{"ops@example.com", "pm@example.com"}, cfg.Recipients)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0 8 1 * *", cfg.Schedule)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, "public.stage_5_plots", cfg.ReportTable)
	assert.Equal(t, 30*time.Second, cfg.MailTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.APIKey)
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("MAIL_TIMEOUT", "5s")
	t.Setenv("SCHEDULE_TIMEZONE", "Europe/London")
	t.Setenv("REPORT_TABLE", "reporting.plots")
	t.Setenv("MONTHLY_QUERY", "SELECT * FROM x WHERE m = ?")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 5*time.Second, cfg.MailTimeout)
	assert.Equal(t, "Europe/London", cfg.Location.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())

	qs := cfg.Queries(sqldb.DialectPostgres)
	assert.Equal(t, "SELECT * FROM x WHERE m = ?", qs.Monthly.SQL)
	assert.Contains(t, qs.Cumulative.SQL, `FROM "reporting"."plots"`)

	// SQLite has no schemas; the default queries drop the prefix there.
	lite := cfg.Queries(sqldb.DialectSQLite)
	assert.Equal(t, "SELECT * FROM x WHERE m = ?", lite.Monthly.SQL)
	assert.Contains(t, lite.Cumulative.SQL, `FROM "plots" WHERE`)
}

func TestFromEnv_MissingRequiredAggregated(t *testing.T) {
	for _, key := range []string{
		"DB_CONNECTION_STRING", "CUMULATIVE_START_DATE", "SENDGRID_BEARER_TOKEN",
		"SENDGRID_ENDPOINT", "SENDER_EMAIL", "RECIPIENT_EMAILS",
	} {
		t.Setenv(key, "")
	}

	_, err := config.FromEnv()

	require.Error(t, err)
	assert.ErrorIs(t, err, report.ErrConfiguration)
	for _, key := range []string{"DB_CONNECTION_STRING", "CUMULATIVE_START_DATE", "SENDER_EMAIL", "RECIPIENT_EMAILS"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CUMULATIVE_START_DATE", "2025-02-30"},
		{"RECIPIENT_EMAILS", "ops@example.com, not-an-address"},
		{"SENDER_EMAIL", "nobody"},
		{"SENDGRID_ENDPOINT", "api.sendgrid.com"},
		{"SCHEDULE", "every month"},
		{"SCHEDULE_TIMEZONE", "Mars/Olympus"},
		{"PORT", "70000"},
		{"LOG_FORMAT", "xml"},
		{"LOG_LEVEL", "loud"},
		{"QUARTERLY_QUERY", "SELECT * FROM t"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.value)

			_, err := config.FromEnv()
			require.Error(t, err)
			assert.ErrorIs(t, err, report.ErrConfiguration)

			var ce *report.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.key, ce.Key)
		})
	}
}

func TestParseRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, config.ParseRecipients("a@x.com,b@x.com"))
	assert.Equal(t, []string{"a@x.com"}, config.ParseRecipients(" a@x.com , , "))
	assert.Empty(t, config.ParseRecipients(" , "))
}
