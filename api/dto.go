package api

// =============================================================================
// REQUEST DTOs
// =============================================================================

// GenerateReportsRequest is the optional body of POST /api/generate-reports.
// Date is typed loosely so a non-string value is reported as a bad date
// rather than bad JSON.
type GenerateReportsRequest struct {
	Date any `json:"date"`
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
