// Package errors provides structured error types for molpool.
// All errors carry a category, code, message, and retryable flag so the
// calling layer can decide whether a failed run is worth repeating.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the concern that produced them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryArtifact   ErrorCategory = "ARTIFACT"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryMetric     ErrorCategory = "METRIC"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidIndex = "INVALID_INDEX"
	CodeInvalidTask  = "INVALID_TASK"
	CodeInvalidTable = "INVALID_TABLE"

	// Artifact codes
	CodeMissingArtifact = "MISSING_ARTIFACT"

	// Schema codes
	CodeSchemaMismatch = "SCHEMA_MISMATCH"
	CodeEmptyTaskGroup = "EMPTY_TASK_GROUP"

	// Metric codes
	CodeDegenerateInput = "DEGENERATE_INPUT"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PoolError is the structured error type used throughout the system.
type PoolError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PoolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PoolError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PoolError) Is(target error) bool {
	var t *PoolError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PoolError.
func New(category ErrorCategory, code, message string) *PoolError {
	return &PoolError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PoolError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PoolError {
	return &PoolError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PoolError) WithDetails(details map[string]interface{}) *PoolError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PoolError.
func GetCategory(err error) ErrorCategory {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PoolError.
func GetCode(err error) string {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Sentinels for errors.Is matching; only category and code are compared.
var (
	ErrMissingArtifact   = New(ErrCategoryArtifact, CodeMissingArtifact, "missing artifact")
	ErrSchemaMismatch    = New(ErrCategorySchema, CodeSchemaMismatch, "schema mismatch")
	ErrEmptyTaskGroup    = New(ErrCategorySchema, CodeEmptyTaskGroup, "empty task group")
	ErrMetricComputation = New(ErrCategoryMetric, CodeDegenerateInput, "metric computation failed")
)

// isRetryable reports which failures are transient. Only object storage
// transfers qualify; the pooling core never retries.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *PoolError {
	return New(ErrCategoryValidation, code, message)
}

// MissingArtifact reports an absent file the run cannot proceed without.
func MissingArtifact(path string, cause error) *PoolError {
	return Wrap(ErrCategoryArtifact, CodeMissingArtifact, fmt.Sprintf("artifact %s not found", path), cause).
		WithDetails(map[string]interface{}{"path": path})
}

func SchemaMismatch(message string) *PoolError {
	return New(ErrCategorySchema, CodeSchemaMismatch, message)
}

func EmptyTaskGroup(kind string) *PoolError {
	return New(ErrCategorySchema, CodeEmptyTaskGroup, fmt.Sprintf("no %s columns to aggregate", kind)).
		WithDetails(map[string]interface{}{"kind": kind})
}

func MetricComputation(metric, message string) *PoolError {
	return New(ErrCategoryMetric, CodeDegenerateInput, fmt.Sprintf("%s: %s", metric, message)).
		WithDetails(map[string]interface{}{"metric": metric})
}

func NewStorageError(code, message string, cause error) *PoolError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *PoolError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
