package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrAuthenticationRequired ErrorCode = "40101"
	ErrInvalidCredentials     ErrorCode = "40102"
	ErrTokenExpired           ErrorCode = "40103"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"
	ErrPayloadTooLarge  ErrorCode = "40003"

	// Resource errors (404xx)
	ErrUserNotFound ErrorCode = "40401"

	// Rate limit errors (429xx)
	ErrQuotaExceeded ErrorCode = "42901"

	// Server errors (5xxxx)
	ErrInternalServer      ErrorCode = "50001"
	ErrUpstreamTimeout     ErrorCode = "50401"
	ErrUpstreamUnavailable ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse is the envelope returned by non-guarded routes
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
	Path      string   `json:"path,omitempty"`
	Method    string   `json:"method,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// NewErrorResponse builds the standard error envelope
func NewErrorResponse(err *APIError, requestID, path, method string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     *err,
		RequestID: requestID,
		Path:      path,
		Method:    method,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Common errors
var (
	ErrAuthenticationRequiredError = &APIError{
		Code:       ErrAuthenticationRequired,
		Message:    "Authentication required. Please log in first.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrQuotaExceededError = &APIError{
		Code:       ErrQuotaExceeded,
		Message:    "You have exceeded your daily API limit.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrUpstreamTimeoutError = &APIError{
		Code:       ErrUpstreamTimeout,
		Message:    "Upstream service timeout",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	ErrUpstreamUnavailableError = &APIError{
		Code:       ErrUpstreamUnavailable,
		Message:    "Upstream service unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewPayloadTooLargeError creates a payload size error carrying the
// guard's human-readable message
func NewPayloadTooLargeError(message string) *APIError {
	return &APIError{
		Code:       ErrPayloadTooLarge,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// GetHTTPStatusFromCode maps an error code to its HTTP status
func GetHTTPStatusFromCode(code ErrorCode) int {
	switch code {
	case ErrAuthenticationRequired, ErrInvalidCredentials, ErrTokenExpired:
		return http.StatusUnauthorized
	case ErrInvalidRequest, ErrValidationFailed, ErrPayloadTooLarge:
		return http.StatusBadRequest
	case ErrUserNotFound:
		return http.StatusNotFound
	case ErrQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
