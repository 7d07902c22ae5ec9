// Package apperror provides structured error handling for the floor core.
// Every failure surfaced by the core is an AppError with a machine-readable
// code so callers can distinguish local validation from sync drift, rejected
// writes, and partially-committed workflows.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by where the failure originated.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Local pre-flight failures. Never sent to the network; always
	// actionable by the operator immediately.
	CodeValidation          = "VALIDATION_ERROR"
	CodeMissingCustomerInfo = "MISSING_CUSTOMER_INFO"

	// Refresh failures. The previous cache snapshot is retained.
	CodeSync = "SYNC_ERROR"

	// Server-rejected writes. Carry the backend detail verbatim.
	CodeMutation = "MUTATION_ERROR"

	// Multi-step workflow committed some steps and failed later ones.
	// Distinct from both success and clean failure.
	CodePartialFailure = "PARTIAL_FAILURE"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409): a mutating call for the same invoice is in flight,
	// or the server detected concurrent modification.
	CodeConflict = "CONFLICT"
	CodeBusy     = "OPERATION_IN_FLIGHT"

	// Business rule violations reported by the backend (422)
	CodeBusinessRule = "BUSINESS_RULE_VIOLATION"
)

// AppError is the standard error type for the module.
// It implements the error interface and provides structured details.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, amounts, ids)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a local validation error (400).
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewMissingCustomerInfo is returned when a debt conversion has neither a
// selected customer nor enough data to create one.
func NewMissingCustomerInfo() *AppError {
	return &AppError{
		Code:       CodeMissingCustomerInfo,
		Message:    "select a customer or provide a full name and phone for a new one",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewSync creates a refresh failure. Callers keep serving the previous
// snapshot; this is surfaced as a dismissible indicator, not a hard stop.
func NewSync(operation string, err error) *AppError {
	return &AppError{
		Code:       CodeSync,
		Message:    fmt.Sprintf("refresh failed: %s", operation),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
		Details:    map[string]any{"operation": operation},
	}
}

// NewMutation creates a server-rejected write error. detail is the backend's
// message and is carried verbatim when present.
func NewMutation(detail string, err error) *AppError {
	msg := detail
	if msg == "" {
		msg = "the server rejected the operation"
	}
	return &AppError{
		Code:       CodeMutation,
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// NewPartialFailure reports a workflow that committed some steps before
// failing. committedStep/failedStep name the boundary; details must carry
// enough ids for manual reconciliation.
func NewPartialFailure(committedStep, failedStep string, err error) *AppError {
	return &AppError{
		Code:       CodePartialFailure,
		Message:    fmt.Sprintf("%s succeeded but %s failed; manual reconciliation required", committedStep, failedStep),
		HTTPStatus: http.StatusConflict,
		Err:        err,
		Details: map[string]any{
			"committed_step": committedStep,
			"failed_step":    failedStep,
		},
	}
}

// NewTimeout creates a request timeout error. Timed-out calls are treated as
// failed and never retried automatically: the first attempt may have
// succeeded server-side.
func NewTimeout(operation string, err error) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("request timed out: %s", operation),
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
		Details:    map[string]any{"operation": operation},
	}
}

// NewBusy is returned when a mutating call for an invoice is already in
// flight from this client.
func NewBusy(invoiceID string) *AppError {
	return &AppError{
		Code:       CodeBusy,
		Message:    "another operation for this invoice is still in flight",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"invoice_id": invoiceID},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(message string) *AppError {
	return &AppError{
		Code:       CodeBusinessRule,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewInternal creates an internal error (hides details from clients)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsValidation checks for local pre-flight failures.
func IsValidation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeValidation || appErr.Code == CodeMissingCustomerInfo
	}
	return false
}

// IsSync checks for refresh failures.
func IsSync(err error) bool { return IsCode(err, CodeSync) }

// IsPartialFailure checks for partially-committed workflows.
func IsPartialFailure(err error) bool { return IsCode(err, CodePartialFailure) }

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }
