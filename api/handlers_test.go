/*
handlers_test.go - Unit tests for the HTTP trigger

Tests for:
- Reference date parsing (query, body, empty body)
- 400 responses that never reach the runner
- 200/500 mapping of run results
- API key enforcement
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/stage5-reports/period"
	"github.com/warp/stage5-reports/report"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, ref *period.Date) report.RunResult {
	return m.Called(ctx, ref).Get(0).(report.RunResult)
}

func dateIs(s string) any {
	return mock.MatchedBy(func(d *period.Date) bool { return d != nil && d.String() == s })
}

func noDate() any {
	return mock.MatchedBy(func(d *period.Date) bool { return d == nil })
}

func newTestRouter(runner *mockRunner, apiKey string) http.Handler {
	return NewRouter(NewHandler(runner), RouterOptions{Logger: zerolog.Nop(), APIKey: apiKey})
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

var okResult = report.RunResult{
	Success:           true,
	Date:              "2025-09-01",
	ReportsGenerated:  2,
	MonthlyRecords:    2,
	CumulativeRecords: 5,
	Message:           "Successfully generated 2 reports for September 01, 2025",
}

func TestGenerateReports_BodyDate(t *testing.T) {
	// GIVEN: a runner that succeeds for the requested date
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, dateIs("2025-09-01")).Return(okResult)

	// WHEN: posting a JSON body with a date
	rec, payload := do(t, newTestRouter(runner, ""), http.MethodPost, "/api/generate-reports", `{"date":"2025-09-01"}`)

	// THEN: 200 with the run result
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "2025-09-01", payload["date"])
	assert.Equal(t, float64(2), payload["reports_generated"])
	assert.Equal(t, float64(0), payload["quarterly_records"])
	assert.NotContains(t, payload, "error")
	runner.AssertExpectations(t)
}

func TestGenerateReports_QueryDate(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, dateIs("2025-12-31")).Return(okResult)

	rec, _ := do(t, newTestRouter(runner, ""), http.MethodGet, "/api/generate-reports?date=2025-12-31", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	runner.AssertExpectations(t)
}

func TestGenerateReports_NoDateMeansToday(t *testing.T) {
	for _, body := range []string{"", "{}", `{"date":null}`, "  "} {
		runner := &mockRunner{}
		runner.On("Run", mock.Anything, noDate()).Return(okResult)

		rec, _ := do(t, newTestRouter(runner, ""), http.MethodPost, "/api/generate-reports", body)

		assert.Equal(t, http.StatusOK, rec.Code, "body %q", body)
		runner.AssertExpectations(t)
	}
}

func TestGenerateReports_InvalidInput(t *testing.T) {
	tests := []struct {
		name, target, body, want string
	}{
		{"bad body date", "/api/generate-reports", `{"date":"2025-13-40"}`, "Invalid date format. Use YYYY-MM-DD"},
		{"non-string date", "/api/generate-reports", `{"date":20250901}`, "Invalid date format. Use YYYY-MM-DD"},
		{"short date", "/api/generate-reports?date=2025-9-1", "", "Invalid date format. Use YYYY-MM-DD"},
		{"malformed json", "/api/generate-reports", `{"date":`, "Invalid JSON body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN: a runner that must not be called
			runner := &mockRunner{}

			// WHEN: sending bad input
			rec, payload := do(t, newTestRouter(runner, ""), http.MethodPost, tc.target, tc.body)

			// THEN: 400 with exactly the error message
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": tc.want}, payload)
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateReports_FailureIs500(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(report.Failed(period.MustParseDate("2025-09-01"), report.ErrNoData))

	rec, payload := do(t, newTestRouter(runner, ""), http.MethodPost, "/api/generate-reports", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "no reports generated - no data found", payload["error"])
}

func TestGenerateReports_APIKey(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong header", func(r *http.Request) { r.Header.Set("x-functions-key", "nope") }, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("x-functions-key", "secret") }, http.StatusOK},
		{"query code", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("code", "secret")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &mockRunner{}
			runner.On("Run", mock.Anything, mock.Anything).Return(okResult)
			h := newTestRouter(runner, "secret")

			req := httptest.NewRequest(http.MethodPost, "/api/generate-reports", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
				runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	// Health is outside the API key group.
	rec, payload := do(t, newTestRouter(&mockRunner{}, "secret"), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
}
