package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeConnection indicates the request never reached the backend
	// (refused, DNS, CORS-equivalent transport failure).
	ErrCodeConnection ErrorCode = iota
	// ErrCodeAuth indicates an authentication/authorization failure (401/403).
	ErrCodeAuth
	// ErrCodeValidation indicates a client error other than auth (4xx).
	ErrCodeValidation
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
	// ErrCodeDecode indicates a malformed structured response body.
	ErrCodeDecode
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeConnection:
		return "connection"
	case ErrCodeAuth:
		return "auth"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	case ErrCodeDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a structured HTTP client error with classification.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Message is the user-displayable message extracted from the response.
	Message string
	// URL is the target URL of the failed request.
	URL string
	// Body is the original response body (may be nil).
	Body []byte
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == ErrCodeConnection {
		return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a connection error carrying the target URL
// so the failure is actionable without digging into wrapped causes.
func NewConnectionError(url string, err error) *Error {
	return &Error{
		Code:    ErrCodeConnection,
		Message: fmt.Sprintf("cannot reach backend at %s", url),
		URL:     url,
		Err:     err,
	}
}

// ClassifyStatus converts an HTTP status code and response body into a
// typed error. Returns nil for 2xx status codes.
func ClassifyStatus(statusCode int, body []byte) *Error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Error{
			StatusCode: statusCode,
			Code:       ErrCodeAuth,
			Message:    ExtractMessage(statusCode, body),
			Body:       body,
		}
	case statusCode >= 400 && statusCode < 500:
		return &Error{
			StatusCode: statusCode,
			Code:       ErrCodeValidation,
			Message:    ExtractMessage(statusCode, body),
			Body:       body,
		}
	default:
		// 5xx and anything else gets the generic retry-later message;
		// the raw body stays available for diagnostics.
		return &Error{
			StatusCode: statusCode,
			Code:       ErrCodeServer,
			Message:    genericStatusMessage(statusCode),
			Body:       body,
		}
	}
}

// messageFields are the JSON keys checked, in order, when extracting a
// human message from an error body.
var messageFields = []string{"error_description", "message", "error"}

// ExtractMessage pulls the best-effort human message out of an error
// response body: a known JSON field, else the raw body text, else a
// status-derived generic message.
func ExtractMessage(statusCode int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return genericStatusMessage(statusCode)
	}

	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err == nil {
		for _, key := range messageFields {
			if s, ok := fields[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(trimmed))
}

func genericStatusMessage(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return "Authentication required"
	case statusCode >= 500:
		return "The server is temporarily unavailable. Please try again later."
	default:
		return fmt.Sprintf("Request failed (HTTP %d)", statusCode)
	}
}

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeConnection
}

// IsAuth checks if an error is an authentication error.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeAuth
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeValidation
}

// IsServerError checks if an error is a server error.
func IsServerError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeServer
}

// MessageOf returns the user-displayable message of a transport error,
// or fallback when err carries no usable message.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
