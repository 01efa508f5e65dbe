// Package errors maps the engine's typed failures to RFC 7807 problem
// responses at the HTTP edge. The core never imports this package; it is
// the thin adapter the design keeps outside the engine.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ProblemDetails represents an RFC 7807 compliant error response.
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
	// Instance is a URI reference identifying the specific occurrence
	Instance string `json:"instance,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// Code is the machine-readable violation code, when one applies
	Code string `json:"code,omitempty"`
	// Suggestion tells the caller how to recover, when recovery exists
	Suggestion string `json:"suggestion,omitempty"`
}

// Problem type URIs for the attendance error families.
const (
	TypeValidationError     = "https://api.fieldops.dev/errors/validation-error"
	TypeStateViolation      = "https://api.fieldops.dev/errors/state-violation"
	TypeGeospatialViolation = "https://api.fieldops.dev/errors/geospatial-violation"
	TypeTimeViolation       = "https://api.fieldops.dev/errors/time-sequence-violation"
	TypeFraudBlocked        = "https://api.fieldops.dev/errors/fraud-blocked"
	TypeConcurrencyConflict = "https://api.fieldops.dev/errors/concurrency-conflict"
	TypeInternalError       = "https://api.fieldops.dev/errors/internal-error"
)

// Titles for the attendance error families.
const (
	TitleValidationError     = "Validation Error"
	TitleStateViolation      = "Attendance State Violation"
	TitleGeospatialViolation = "Geospatial Violation"
	TitleTimeViolation       = "Time Sequence Violation"
	TitleFraudBlocked        = "Operation Blocked"
	TitleConcurrencyConflict = "Concurrent Operation Conflict"
	TitleInternalError       = "Internal Server Error"
)

// NewProblemDetails creates an RFC 7807 problem.
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithCode attaches the machine-readable violation code.
func (p *ProblemDetails) WithCode(code string) *ProblemDetails {
	p.Code = code
	return p
}

// WithSuggestion attaches the recovery hint.
func (p *ProblemDetails) WithSuggestion(suggestion string) *ProblemDetails {
	p.Suggestion = suggestion
	return p
}

// Error implements the error interface.
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// NewValidationError creates a request validation problem.
func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, TitleValidationError, http.StatusBadRequest, detail, instance)
}

// NewStateViolation creates an illegal-transition problem. The caller can
// retry with the correct sequence, hence 409.
func NewStateViolation(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeStateViolation, TitleStateViolation, http.StatusConflict, detail, instance)
}

// NewGeospatialViolation creates an invalid-coordinates or radius-breach
// problem.
func NewGeospatialViolation(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeGeospatialViolation, TitleGeospatialViolation, http.StatusUnprocessableEntity, detail, instance)
}

// NewTimeViolation creates a non-monotonic timestamp problem.
func NewTimeViolation(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeTimeViolation, TitleTimeViolation, http.StatusUnprocessableEntity, detail, instance)
}

// NewFraudBlocked creates a high-confidence fraud rejection problem.
func NewFraudBlocked(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeFraudBlocked, TitleFraudBlocked, http.StatusForbidden, detail, instance)
}

// NewConcurrencyConflict creates a lock-timeout problem; the caller should
// retry after a short backoff.
func NewConcurrencyConflict(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeConcurrencyConflict, TitleConcurrencyConflict, http.StatusTooManyRequests, detail, instance)
}

// NewInternalError creates a generic internal problem.
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}
