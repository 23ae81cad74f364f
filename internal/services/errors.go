package services

import "errors"

// Standard service errors for consistent error handling
var (
	// Network and connectivity errors
	ErrTimeout      = errors.New("operation timed out")
	ErrUnauthorized = errors.New("unauthorized access")

	// Data errors
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input provided")

	// Service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimited        = errors.New("rate limited")

	// Mailbox specific errors
	ErrMessageNotFound  = errors.New("message not found")
	ErrLabelNotFound    = errors.New("label not found")
	ErrInvalidMessageID = errors.New("invalid message ID")
	ErrInvalidLabelID   = errors.New("invalid label ID")
)

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrRateLimited)
}

// IsPermanentError determines if an error is permanent and should not be retried
func IsPermanentError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidMessageID) ||
		errors.Is(err, ErrInvalidLabelID)
}
