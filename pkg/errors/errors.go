package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Input errors
	ErrInvalidInputData = errors.New("invalid input data")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidFormat    = errors.New("invalid output format")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConfigurationLoad    = errors.New("failed to load configuration")

	// Search errors
	ErrNoValidCombination = errors.New("no valid (k, l) combination")
	ErrSearchCancelled    = errors.New("search cancelled")

	// Privacy errors
	ErrPrivacyViolation = errors.New("privacy violation")

	// Storage errors
	ErrStorageNotConfigured    = errors.New("report storage not configured")
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrStorageWriteFailed      = errors.New("storage write failed")
	ErrStorageReadFailed       = errors.New("storage read failed")
	ErrReportNotFound          = errors.New("report not found")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeSearch        ErrorType = "search"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by type and code, or the sentinel bound to the code.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	if sentinel, ok := codeSentinels[e.Code]; ok {
		return sentinel == target
	}
	return false
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewConfigurationError creates an invalid-configuration error
func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, CodeInvalidConfiguration, message)
}

// NewSearchError creates a search error
func NewSearchError(code, message string) *AppError {
	return NewAppError(ErrorTypeSearch, code, message)
}

// NewPrivacyError creates a privacy violation error
func NewPrivacyError(message string) *AppError {
	return NewAppError(ErrorTypePrivacy, CodePrivacyViolation, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// StatusCode returns the HTTP status for err, 500 when it carries none.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return 500
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation, ErrorTypeConfiguration:
		return 400
	case ErrorTypePrivacy:
		return 403
	case ErrorTypeSearch:
		return 422
	default:
		return 500
	}
}

// ErrorResponse represents an error response for APIs
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// Error codes for different error scenarios
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeMissingField         = "MISSING_FIELD"
	CodeUnknownField         = "UNKNOWN_FIELD"
	CodeInvalidFormat        = "INVALID_FORMAT"
	CodeOutOfRange           = "OUT_OF_RANGE"
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"

	CodeNoValidCombination = "NO_VALID_COMBINATION"
	CodeSearchCancelled    = "SEARCH_CANCELLED"

	CodePrivacyViolation = "PRIVACY_VIOLATION"

	CodeStorageNotConfigured = "STORAGE_NOT_CONFIGURED"
	CodeConnectionFailed     = "CONNECTION_FAILED"
	CodeWriteFailed          = "WRITE_FAILED"
	CodeReadFailed           = "READ_FAILED"
	CodeReportNotFound       = "REPORT_NOT_FOUND"

	CodeInternalError = "INTERNAL_ERROR"
)

var codeSentinels = map[string]error{
	CodeInvalidInput:         ErrInvalidInputData,
	CodeMissingField:         ErrInvalidInputData,
	CodeOutOfRange:           ErrInvalidInputData,
	CodeUnknownField:         ErrUnknownField,
	CodeInvalidFormat:        ErrInvalidFormat,
	CodeInvalidConfiguration: ErrInvalidConfiguration,
	CodeNoValidCombination:   ErrNoValidCombination,
	CodeSearchCancelled:      ErrSearchCancelled,
	CodePrivacyViolation:     ErrPrivacyViolation,
	CodeStorageNotConfigured: ErrStorageNotConfigured,
	CodeConnectionFailed:     ErrStorageConnectionFailed,
	CodeWriteFailed:          ErrStorageWriteFailed,
	CodeReadFailed:           ErrStorageReadFailed,
	CodeReportNotFound:       ErrReportNotFound,
	CodeInternalError:        ErrInternal,
}
