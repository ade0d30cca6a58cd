package errors

import "time"

// NewStorageError creates a storage error whose HTTP status follows the code
func NewStorageError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeStorage,
		Code:       code,
		Message:    message,
		HTTPStatus: getStorageErrorHTTPStatus(code),
	}
}

// WrapStorageError wraps a backend error with a storage code
func WrapStorageError(err error, code, message string) *AppError {
	appErr := NewStorageError(code, message)
	appErr.Cause = err
	return appErr
}

// IsRetryable reports whether err is a storage failure worth retrying
func IsRetryable(err error) bool {
	var appErr *AppError
	if !As(err, &appErr) || appErr.Type != ErrorTypeStorage {
		return false
	}
	return isRetryableStorageError(appErr.Code)
}

// GetRetryDelay returns an exponential backoff delay capped at 30 seconds
func GetRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := 100 * time.Millisecond
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= 30*time.Second {
			return 30 * time.Second
		}
	}
	return delay
}

// isRetryableStorageError determines if a storage error code is retryable
func isRetryableStorageError(code string) bool {
	retryableErrors := map[string]bool{
		CodeConnectionFailed: true,
		CodeWriteFailed:      true,
		CodeReadFailed:       true,
	}

	return retryableErrors[code]
}

// getStorageErrorHTTPStatus returns the appropriate HTTP status for a storage error code
func getStorageErrorHTTPStatus(code string) int {
	statusMap := map[string]int{
		CodeReportNotFound:       404,
		CodeStorageNotConfigured: 503,
		CodeConnectionFailed:     503,
		CodeWriteFailed:          502,
		CodeReadFailed:           502,
		"INVALID_CONFIG":         400,
		"UNSUPPORTED_TYPE":       400,
	}

	if status, exists := statusMap[code]; exists {
		return status
	}

	return 500 // Default to internal server error
}
