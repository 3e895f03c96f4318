// Package errors provides the single typed error model used by submissions,
// uploads and the backend adapters.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"loan-origination/internal/common/validation"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client-side rejections never reach the network.
const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeTooLarge        ErrorCode = "TOO_LARGE"
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"
	ErrCodeNotAnImage      ErrorCode = "NOT_AN_IMAGE"

	ErrCodeNotInitialized     ErrorCode = "NOT_INITIALIZED"
	ErrCodeSubmissionInFlight ErrorCode = "SUBMISSION_IN_FLIGHT"
)

// Failures observed at or beyond the network boundary.
const (
	ErrCodeTransportError      ErrorCode = "TRANSPORT_ERROR"
	ErrCodeBackendError        ErrorCode = "BACKEND_ERROR"
	ErrCodeMalformedResponse   ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeAuthenticationError ErrorCode = "AUTHENTICATION_ERROR"
)

// StandardError is the normalized failure value. StatusCode is zero when no
// HTTP response was received.
type StandardError struct {
	Code       ErrorCode                    `json:"code"`
	Message    string                       `json:"message"`
	Details    string                       `json:"details,omitempty"`
	StatusCode int                          `json:"statusCode,omitempty"`
	Retryable  bool                         `json:"retryable"`
	Violations []validation.ValidationError `json:"violations,omitempty"`
	Timestamp  time.Time                    `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("StandardError[%s/%d]: %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Status reports the HTTP status code, if one was received.
func (e *StandardError) Status() (int, bool) {
	return e.StatusCode, e.StatusCode != 0
}

// Is matches another *StandardError by code, so callers can write
// errors.Is(err, errors.ErrTooLarge).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidationFailed   = &StandardError{Code: ErrCodeValidationFailed}
	ErrNotFound           = &StandardError{Code: ErrCodeNotFound}
	ErrTooLarge           = &StandardError{Code: ErrCodeTooLarge}
	ErrUnsupportedType    = &StandardError{Code: ErrCodeUnsupportedType}
	ErrNotAnImage         = &StandardError{Code: ErrCodeNotAnImage}
	ErrNotInitialized     = &StandardError{Code: ErrCodeNotInitialized}
	ErrSubmissionInFlight = &StandardError{Code: ErrCodeSubmissionInFlight}
	ErrTransport          = &StandardError{Code: ErrCodeTransportError}
	ErrBackend            = &StandardError{Code: ErrCodeBackendError}
	ErrMalformedResponse  = &StandardError{Code: ErrCodeMalformedResponse}
	ErrAuthentication     = &StandardError{Code: ErrCodeAuthenticationError}
)

// NewValidationFailedError wraps the collected violations of a failed step.
func NewValidationFailedError(result *validation.ValidationResult) *StandardError {
	violations := result.Errors
	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, v.Field)
	}
	return &StandardError{
		Code:       ErrCodeValidationFailed,
		Message:    fmt.Sprintf("%d field(s) failed validation", len(violations)),
		Details:    strings.Join(fields, ", "),
		Retryable:  false,
		Violations: violations,
		Timestamp:  time.Now().UTC(),
	}
}

// NewPreflightError converts a failed file check into an upload error. The
// violation's code becomes the error code.
func NewPreflightError(v validation.ValidationError) *StandardError {
	return &StandardError{
		Code:       ErrorCode(v.Code),
		Message:    v.Message,
		Details:    v.Field,
		Retryable:  false,
		Violations: []validation.ValidationError{v},
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransportError is used when no response was received at all.
func NewTransportError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportError,
		Message:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendError carries a non-2xx status and the resolved message.
func NewBackendError(status int, message, body string) *StandardError {
	return &StandardError{
		Code:       ErrCodeBackendError,
		Message:    message,
		Details:    body,
		StatusCode: status,
		Retryable:  status >= 500 || status == 429,
		Timestamp:  time.Now().UTC(),
	}
}

// NewMalformedResponseError flags a 2xx response that broke its contract.
func NewMalformedResponseError(status int, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeMalformedResponse,
		Message:    "Backend response is missing required data",
		Details:    details,
		StatusCode: status,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewAuthenticationError creates a non-retryable authentication error.
func NewAuthenticationError(status int, message string) *StandardError {
	return &StandardError{
		Code:       ErrCodeAuthenticationError,
		Message:    message,
		StatusCode: status,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

func NewNotInitializedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNotInitialized,
		Message:   "Session is not initialized; log in and load reference data first",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSubmissionInFlightError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInFlight,
		Message:   "Another submission is already in progress",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports the Retryable flag set by the constructor that built
// err. It is a hint for callers with their own retry policy; nothing in this
// module retries.
func IsRetryable(err error) bool {
	stdErr := Normalize(err)
	return stdErr != nil && stdErr.Retryable
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "VALIDATION"
	case ErrCodeNotFound, ErrCodeTooLarge, ErrCodeUnsupportedType, ErrCodeNotAnImage:
		return "PREFLIGHT"
	case ErrCodeTransportError:
		return "TRANSPORT"
	case ErrCodeBackendError, ErrCodeMalformedResponse:
		return "BACKEND"
	case ErrCodeAuthenticationError:
		return "AUTH"
	case ErrCodeNotInitialized, ErrCodeSubmissionInFlight:
		return "SESSION"
	default:
		return "OTHER"
	}
}
