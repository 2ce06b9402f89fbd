package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

// Error codes carried in APIError.Code. They are stable, messages are not.
const (
	CodeUnauthorized = "unauthorized"     // bad credentials, bad/expired/reused token
	CodeValidation   = "validation_error" // malformed input
	CodeConflict     = "conflict"         // unique constraint or illegal status change
	CodeNotFound     = "not_found"
	CodeForbidden    = "forbidden" // authenticated but not allowed
	CodeServerError  = "server_error"
)

// APIError is the error body returned by every endpoint.
type APIError struct {
	StatusCode int `json:"-"`

	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements error so clients can return APIError directly.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WriteError writes e as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

var (
	// ErrUnauthorized is the single answer to any failed credential or token
	// check. It never says which part was wrong.
	ErrUnauthorized = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       CodeUnauthorized,
		Message:    "invalid credentials",
	}

	// ErrInvalidRequest is for bodies that do not decode at all. Domain
	// validation failures use NewValidationError with the reason instead.
	ErrInvalidRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       CodeValidation,
		Message:    "the request is malformed or missing required fields",
	}

	// ErrConflict covers duplicate emails and transitions out of a
	// terminal action request status.
	ErrConflict = &APIError{
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    "resource already exists",
	}

	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    "resource not found",
	}

	ErrForbidden = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       CodeForbidden,
		Message:    "not allowed",
	}

	// ErrServerError never carries the underlying error; it is logged
	// server side instead.
	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeServerError,
		Message:    "internal server error",
	}
)

// NewValidationError returns a 400 with a custom message.
func NewValidationError(msg string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

// parseErrorResponse turns a non-expected response into an APIError. Bodies
// that are not APIError JSON (e.g. from a proxy) become a generic server_error
// carrying the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       CodeServerError,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
