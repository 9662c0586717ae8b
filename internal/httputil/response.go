package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
)

var debugErrors atomic.Bool

// SetDebugErrors controls whether internal error strings are returned in
// the details field of error responses.
func SetDebugErrors(enabled bool) {
	debugErrors.Store(enabled)
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an error response with a machine readable code.
func Error(w http.ResponseWriter, status int, code string) {
	JSON(w, status, ErrorResponse{Error: code})
}

// ErrorMessage writes an error response with a human readable message.
func ErrorMessage(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: code, Message: message})
}

// ErrorDetails writes an error response carrying structured details, e.g.
// field level validation errors.
func ErrorDetails(w http.ResponseWriter, status int, code string, details any) {
	JSON(w, status, ErrorResponse{Error: code, Details: details})
}

// InternalError writes an error response for err. The error text is only
// included when debug errors are enabled.
func InternalError(w http.ResponseWriter, status int, code string, err error) {
	resp := ErrorResponse{Error: code}
	if err != nil && debugErrors.Load() {
		resp.Details = err.Error()
	}
	JSON(w, status, resp)
}

// IsBodyTooLarge reports whether err came from a body read that exceeded
// the request size limit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
