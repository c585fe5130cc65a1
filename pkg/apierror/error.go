package apierror

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// defaultMessages fill in an empty message per status.
var defaultMessages = map[int]string{
	http.StatusUnauthorized:        "Authentication required",
	http.StatusForbidden:           "Access denied",
	http.StatusNotFound:            "Resource not found",
	http.StatusTooManyRequests:     "Rate limit exceeded",
	http.StatusInternalServerError: "An unexpected error occurred",
}

// New creates an error with the given status, code and message.
func New(status int, code, message string) *Error {
	if message == "" {
		message = defaultMessages[status]
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithCode overrides the machine-readable error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// ToJSON renders the error inside the failure envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Success: false, Error: e})
	return data
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "BAD_REQUEST", message)
}

// ValidationError creates a 400 error listing the offending fields.
func ValidationError(message string, details ...FieldError) *Error {
	e := New(http.StatusBadRequest, "VALIDATION_ERROR", message)
	e.Details = details
	return e
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "FORBIDDEN", message)
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, "NOT_FOUND", message)
}

// Conflict creates a 409 error; the item or user is in a state that
// prevents the operation.
func Conflict(message string) *Error {
	return New(http.StatusConflict, "CONFLICT", message)
}

// UnprocessableEntity creates a 422 error.
func UnprocessableEntity(message string) *Error {
	return New(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", message)
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, "RATE_LIMITED", message)
}

// InternalError creates a 500 error.
func InternalError(message string) *Error {
	return New(http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
