/*
handlers.go - HTTP handlers for the on-demand report trigger

ENDPOINTS:
  POST /api/generate-reports   Run the reports now (GET is accepted too)
  GET  /healthz                Liveness

REFERENCE DATE:
  Taken from ?date=YYYY-MM-DD, else from a JSON body {"date": "YYYY-MM-DD"}.
  An empty body or a missing date means today. A bad date is rejected with
  400 before anything touches the data store.

RESPONSES:
  200  RunResult with success=true
  500  RunResult with success=false
  400  {"error": "Invalid date format. Use YYYY-MM-DD"}
       {"error": "Invalid JSON body"}

SEE ALSO:
  - server.go: router and middleware
  - runner/runner.go: what a run does
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/warp/stage5-reports/period"
	"github.com/warp/stage5-reports/report"
)

const maxBodyBytes = 1 << 20

// Client-facing messages.
const (
	msgInvalidDate = "Invalid date format. Use YYYY-MM-DD"
	msgInvalidJSON = "Invalid JSON body"
)

// ReportRunner runs one report generation.
type ReportRunner interface {
	Run(ctx context.Context, ref *period.Date) report.RunResult
}

// Handler holds the HTTP handler dependencies.
type Handler struct {
	Runner ReportRunner
}

// NewHandler creates a new handler.
func NewHandler(runner ReportRunner) *Handler {
	return &Handler{Runner: runner}
}

// GenerateReports runs the reports for the requested (or current) date.
func (h *Handler) GenerateReports(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	ref, err := referenceDate(r)
	if err != nil {
		var ve *report.ValidationError
		if errors.As(err, &ve) {
			logger.Warn().Str("field", ve.Field).Str("value", ve.Value).Msg("rejected report request")
			writeError(w, http.StatusBadRequest, ve.Message, "")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), report.Category(err))
		return
	}

	if ref != nil {
		logger.Info().Str("date", ref.String()).Msg("generating reports for requested date")
	} else {
		logger.Info().Msg("generating reports for today")
	}

	result := h.Runner.Run(r.Context(), ref)
	if !result.Success {
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// referenceDate extracts the optional date. A nil date means "today".
func referenceDate(r *http.Request) (*period.Date, error) {
	if raw := r.URL.Query().Get("date"); raw != "" {
		return parseDate(raw)
	}

	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, &report.ValidationError{Field: "body", Message: msgInvalidJSON}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var req GenerateReportsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &report.ValidationError{Field: "body", Message: msgInvalidJSON}
	}

	switch v := req.Date.(type) {
	case nil:
		return nil, nil
	case string:
		return parseDate(v)
	default:
		return nil, &report.ValidationError{Field: "date", Message: msgInvalidDate}
	}
}

func parseDate(raw string) (*period.Date, error) {
	d, err := period.ParseDate(raw)
	if err != nil {
		return nil, &report.ValidationError{Field: "date", Value: raw, Message: msgInvalidDate}
	}
	return &d, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
