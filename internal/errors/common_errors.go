package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMalformedKey      ErrorType = "MALFORMED_KEY"
	ErrTypeMalformedWorkbook ErrorType = "MALFORMED_WORKBOOK"
	ErrTypeEmptyDataset      ErrorType = "EMPTY_DATASET"
	ErrTypeUnparseableDate   ErrorType = "UNPARSEABLE_DATE"
	ErrTypeSourceUnavailable ErrorType = "SOURCE_UNAVAILABLE"
	ErrTypeSinkUnavailable   ErrorType = "SINK_UNAVAILABLE"
	ErrTypeLoadFailed        ErrorType = "LOAD_FAILED"
	ErrTypeValidation        ErrorType = "VALIDATION"
	ErrTypeConfig            ErrorType = "CONFIG"
)

// Sentinels for errors.Is. Any *AppError of the same Type matches.
var (
	ErrMalformedKey      = &AppError{Type: ErrTypeMalformedKey, Message: "malformed object key"}
	ErrMalformedWorkbook = &AppError{Type: ErrTypeMalformedWorkbook, Message: "malformed workbook"}
	ErrEmptyDataset      = &AppError{Type: ErrTypeEmptyDataset, Message: "empty dataset"}
	ErrUnparseableDate   = &AppError{Type: ErrTypeUnparseableDate, Message: "unparseable date"}
	ErrSourceUnavailable = &AppError{Type: ErrTypeSourceUnavailable, Message: "source unavailable"}
	ErrSinkUnavailable   = &AppError{Type: ErrTypeSinkUnavailable, Message: "sink unavailable"}
	ErrLoadFailed        = &AppError{Type: ErrTypeLoadFailed, Message: "load failed"}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewMalformedKeyError creates an error for an object key without label/filename structure
func NewMalformedKeyError(key string) *AppError {
	return NewAppError(ErrTypeMalformedKey, fmt.Sprintf("key %q is not of the form label/filename", key), nil).
		WithContext("key", key)
}

// NewMalformedWorkbookError creates a workbook structure error
func NewMalformedWorkbookError(message string, cause error) *AppError {
	return NewAppError(ErrTypeMalformedWorkbook, message, cause)
}

// NewEmptyDatasetError creates an error for a workbook the anchor date cannot be derived from
func NewEmptyDatasetError(message string, cause error) *AppError {
	return NewAppError(ErrTypeEmptyDataset, message, cause)
}

// NewUnparseableDateError creates a date parsing error for a worksheet row
func NewUnparseableDateError(row int, text string) *AppError {
	return NewAppError(ErrTypeUnparseableDate, fmt.Sprintf("row %d: cannot parse date %q", row, text), nil).
		WithContext("row", row)
}

// NewSourceUnavailableError wraps a transport error reading the source object
func NewSourceUnavailableError(bucket, key string, cause error) *AppError {
	return NewAppError(ErrTypeSourceUnavailable, fmt.Sprintf("cannot read s3://%s/%s", bucket, key), cause).
		WithContext("bucket", bucket).
		WithContext("key", key)
}

// NewSinkUnavailableError wraps a transport error writing output or reaching the warehouse
func NewSinkUnavailableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSinkUnavailable, message, cause)
}

// NewLoadFailedError creates an error for a load the warehouse rejected
func NewLoadFailedError(message string, cause error) *AppError {
	return NewAppError(ErrTypeLoadFailed, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the type of the outermost AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsRetryable reports whether the invocation layer should retry err.
// Only transport failures are; classification failures never succeed on retry.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrTypeSourceUnavailable, ErrTypeSinkUnavailable:
		return true
	default:
		return false
	}
}
