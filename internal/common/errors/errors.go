// Package errors provides the standardized error taxonomy for the
// message-handling pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Classification oracle failures. Recovered locally: the pipeline
	// degrades to a clarification answer, never a process failure.
	ErrCodeClassificationFailed        ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeClassificationTimeout       ErrorCode = "CLASSIFICATION_TIMEOUT"
	ErrCodeClassificationLowConfidence ErrorCode = "CLASSIFICATION_LOW_CONFIDENCE"

	// Resolution outcomes. Recovered locally: surfaced as a named
	// missing/ambiguous field, no mutation attempted.
	ErrCodeResolutionUnresolved ErrorCode = "RESOLUTION_UNRESOLVED"
	ErrCodeResolutionAmbiguous  ErrorCode = "RESOLUTION_AMBIGUOUS"

	// Dispatch-side failures.
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeBusinessRuleViolation ErrorCode = "BUSINESS_RULE_VIOLATION"

	// Store failures. Fatal for the current request only.
	ErrCodeDataAccess       ErrorCode = "DATA_ACCESS_ERROR"
	ErrCodeViewNotAllowed   ErrorCode = "VIEW_NOT_ALLOWED"
	ErrCodeInvalidQueryKind ErrorCode = "INVALID_QUERY_KIND"
)

// ==========================
// 2. StandardError
// ==========================

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

// AsStandard extracts a *StandardError from an error chain, or nil.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return nil
}

// CodeOf returns the taxonomy code of err, or empty when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 3. Constructors
// ==========================

// NewClassificationFailedError marks an oracle call that errored out.
func NewClassificationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationFailed,
		Message:   "Intent classification failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassificationTimeoutError marks an oracle call that exceeded its budget.
func NewClassificationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationTimeout,
		Message:   "Intent classification timeout",
		Details:   "oracle call exceeded the configured timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLowConfidenceError marks a classification below the confidence threshold.
func NewLowConfidenceError(confidence, threshold float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationLowConfidence,
		Message:   "Classification confidence below threshold",
		Details:   fmt.Sprintf("confidence: %.2f, threshold: %.2f", confidence, threshold),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResolutionUnresolvedError names the fields that could not be resolved.
func NewResolutionUnresolvedError(fields []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResolutionUnresolved,
		Message:   "Entity resolution found no match",
		Details:   fmt.Sprintf("unresolved fields: %s", strings.Join(fields, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"fields": fields},
		Timestamp: time.Now().UTC(),
	}
}

// NewResolutionAmbiguousError names a field whose reference matched more
// than one entity at equal score.
func NewResolutionAmbiguousError(field string, candidates []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResolutionAmbiguous,
		Message:   "Entity reference is ambiguous",
		Details:   fmt.Sprintf("field %q matches: %s", field, strings.Join(candidates, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field, "candidates": candidates},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError lists every required field that is missing or
// invalid for the requested operation.
func NewValidationFailedError(operation string, missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Operation validation failed",
		Details:   fmt.Sprintf("operation: %s, missing: %s", operation, strings.Join(missing, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"operation": operation, "missing": missing},
		Timestamp: time.Now().UTC(),
	}
}

// NewBusinessRuleError marks a mutation the business rules reject.
func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRuleViolation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDataAccessError wraps a store failure. Retry policy belongs to the
// transport layer, not this core; the flag only records that a retry could
// conceivably succeed.
func NewDataAccessError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataAccess,
		Message:   "Data store error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewViewNotAllowedError marks a read outside the fixed view menu.
func NewViewNotAllowedError(view string) *StandardError {
	return &StandardError{
		Code:      ErrCodeViewNotAllowed,
		Message:   "View is not part of the analytics menu",
		Details:   fmt.Sprintf("view: %s", view),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidQueryKindError marks an unsupported analytics query kind.
func NewInvalidQueryKindError(kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidQueryKind,
		Message:   "Unsupported analytics query kind",
		Details:   fmt.Sprintf("kind: %s", kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsFatal reports whether the error must abort the current request with a
// generic failure. Only data-access errors are fatal; everything else in
// the taxonomy composes a specific user-facing answer.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrCodeDataAccess
}

// IsRecoverable reports whether the pipeline handles the error by
// composing a clarification instead of failing.
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeClassificationFailed,
		ErrCodeClassificationTimeout,
		ErrCodeClassificationLowConfidence,
		ErrCodeResolutionUnresolved,
		ErrCodeResolutionAmbiguous,
		ErrCodeValidationFailed,
		ErrCodeBusinessRuleViolation:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the pipeline stage a code belongs to.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CLASSIFICATION"):
		return "CLASSIFY"
	case strings.Contains(codeStr, "RESOLUTION"):
		return "RESOLVE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "BUSINESS_RULE"):
		return "DISPATCH"
	case strings.Contains(codeStr, "VIEW") || strings.Contains(codeStr, "QUERY"):
		return "ANALYTICS"
	case strings.Contains(codeStr, "DATA_ACCESS"):
		return "STORE"
	default:
		return "OTHER"
	}
}
