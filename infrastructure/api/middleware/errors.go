package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/helixml/travelmap/internal/log"
	"github.com/helixml/travelmap/internal/validation"
)

// ErrAuthentication is the sentinel matched by authentication failures.
var ErrAuthentication = errors.New("authentication failed")

// APIError is an error carrying the HTTP status it maps to.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// BadRequest wraps cause as a 400 error.
func BadRequest(message string, cause error) *APIError {
	return NewAPIError(http.StatusBadRequest, message, cause)
}

// NotFound creates a 404 error.
func NotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, message, nil)
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

// Error implements error.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// AuthenticationError reports a rejected API key.
type AuthenticationError struct {
	reason string
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{reason: reason}
}

// Error implements error.
func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.reason
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error         string            `json:"error"`
	Fields        map[string]string `json:"fields,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// WriteError writes err as a JSON error response. Only APIError messages
// and validation details reach the client; anything else is reported as an
// internal error and logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := http.StatusInternalServerError
	body := ErrorBody{
		Error:         http.StatusText(status),
		CorrelationID: log.CorrelationID(r.Context()),
	}

	var apiErr *APIError
	var validationErr *validation.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code()
		body.Error = apiErr.Message()
		if errors.As(err, &validationErr) {
			body.Fields = fieldMessages(validationErr)
		}
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body.Error = "validation failed"
		body.Fields = fieldMessages(validationErr)
	case errors.Is(err, ErrAuthentication):
		status = http.StatusUnauthorized
		body.Error = err.Error()
	}

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request error",
			"status", status,
			"error", err.Error(),
			"path", r.URL.Path,
		)
	}

	WriteJSON(w, status, body)
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func fieldMessages(err *validation.Error) map[string]string {
	fields := err.Fields()
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Field()] = f.Error()
	}
	return out
}
