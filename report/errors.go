/*
errors.go - Error taxonomy for report runs

PURPOSE:
  All error types in one place so every layer (store, render, notify,
  runner, api) classifies failures the same way.

ERROR CATEGORIES:
  1. Configuration - a required setting is missing or malformed
  2. Connection    - the data store is unreachable
  3. Query         - a query failed or could not be bound
  4. Render        - row data could not be serialized to CSV
  5. Delivery      - the mail API rejected the message or timed out
  6. No data       - every report window came back empty
  7. Validation    - malformed caller input (on-demand date)

USAGE:
  Wrap with context and match with errors.Is:

    if errors.Is(err, report.ErrDelivery) { ... }

  Only validation errors are client errors; everything else becomes a
  failure RunResult in the runner.
*/
package report

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrConfiguration = errors.New("configuration error")
	ErrConnection    = errors.New("data store connection failed")
	ErrQuery         = errors.New("query failed")
	ErrRender        = errors.New("render failed")
	ErrDelivery      = errors.New("delivery failed")

	// ErrNoData is returned when no window produced any rows. Its text is
	// what callers see in the RunResult.
	ErrNoData = errors.New("no reports generated - no data found")

	// ErrValidation is returned for malformed caller input.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError names a missing or invalid setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// MissingSetting is shorthand for a ConfigError about an unset key.
func MissingSetting(key string) error {
	return &ConfigError{Key: key, Reason: "is required"}
}

// QueryError wraps a failure while fetching one report window.
type QueryError struct {
	Kind Kind
	Err  error
}

func (e *QueryError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("query failed: %v", e.Err)
	}
	return fmt.Sprintf("%s query failed: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQuery, e.Err} }

// RenderError wraps a CSV serialization failure.
type RenderError struct {
	Filename string
	Column   string
	Err      error
}

func (e *RenderError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("render %s: column %q: %v", e.Filename, e.Column, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Filename, e.Err)
}

func (e *RenderError) Unwrap() []error { return []error{ErrRender, e.Err} }

// DeliveryError describes a rejected or failed mail API call.
// StatusCode is 0 when no response was received (timeout, refused).
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("delivery failed: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("delivery failed: status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("delivery failed: status %d", e.StatusCode)
	}
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDelivery, e.Err}
	}
	return []error{ErrDelivery}
}

// ValidationError describes malformed caller input.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Category returns a short label for logs and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrQuery):
		return "query"
	case errors.Is(err, ErrRender):
		return "render"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		return "internal"
	}
}
