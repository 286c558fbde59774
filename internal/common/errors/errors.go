// Package errors provides standardized error handling for the placement
// matching workers and BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodePivotNotFound   ErrorCode = "PIVOT_NOT_FOUND"
	ErrCodeResultNotFound  ErrorCode = "RESULT_NOT_FOUND"
	ErrCodePivotIneligible ErrorCode = "PIVOT_INELIGIBLE"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeTransientPersistence ErrorCode = "TRANSIENT_PERSISTENCE"
	ErrCodeBatchPartialFailure  ErrorCode = "BATCH_PARTIAL_FAILURE"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ConvertToBPMNError maps a StandardError to its BPMN representation.
func ConvertToBPMNError(err *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(err.Code),
		Message:   err.Message,
		Details:   err.Details,
		Retryable: err.Retryable,
		Retries:   GetRetryCount(err.Code),
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewPivotNotFoundError creates a non-retryable missing-pivot error.
func NewPivotNotFoundError(pivotKind, pivotID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePivotNotFound,
		Message:   "Pivot record not found",
		Details:   fmt.Sprintf("kind: %s, id: %s", pivotKind, pivotID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultNotFoundError creates a non-retryable missing-result error.
func NewResultNotFoundError(resultID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultNotFound,
		Message:   "Match result not found",
		Details:   fmt.Sprintf("resultId: %s", resultID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPivotIneligibleError creates a non-retryable ineligible-pivot error.
func NewPivotIneligibleError(pivotID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodePivotIneligible,
		Message:   "Pivot status is outside the eligible set",
		Details:   fmt.Sprintf("pivotId: %s, status: %s", pivotID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientPersistenceError creates a retryable persistence error.
func NewTransientPersistenceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientPersistence,
		Message:   "Transient failure while persisting match results",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchPartialFailureError records per-pivot failures of a batch run.
// Non-retryable: the run completed, only some pivots failed.
func NewBatchPartialFailureError(failed int, pivots []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchPartialFailure,
		Message:   "Batch run completed with per-pivot failures",
		Details:   fmt.Sprintf("failedPivots: %d", failed),
		Retryable: false,
		Metadata:  map[string]interface{}{"failedPivots": pivots},
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("query: %s, error: %s", query, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search index error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Candidate index query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Classification Helpers
// ==========================

// GetRetryCount returns how many engine-level retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransientPersistence:
		return 1
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed, ErrCodeNotificationSendFailed:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodePivotNotFound, ErrCodeResultNotFound, ErrCodePivotIneligible:
		return "lookup"
	case ErrCodeValidationFailed:
		return "validation"
	case ErrCodeTransientPersistence, ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return "persistence"
	case ErrCodeSearchQueryFailed:
		return "search"
	case ErrCodeNotificationSendFailed:
		return "notification"
	case ErrCodeBatchPartialFailure:
		return "batch"
	default:
		return "internal"
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodePivotNotFound || code == ErrCodeResultNotFound
}

// IsIneligible reports whether err is an ineligible-pivot error.
func IsIneligible(err error) bool {
	return CodeOf(err) == ErrCodePivotIneligible
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidationFailed
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
