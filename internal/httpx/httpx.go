// Package httpx holds the shared JSON response and error envelope used by
// every handler. Errors carry a stable machine-readable code; internals are
// logged server-side and never leak into the response body.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is a request error raised near the handler boundary and translated
// into a JSON envelope by WriteError.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Common error constructors matching the service-wide taxonomy.
func Unauthorized() *Error {
	return NewError(http.StatusUnauthorized, "unauthorized", "authentication required")
}

func Forbidden() *Error {
	return NewError(http.StatusForbidden, "forbidden", "insufficient permissions")
}

func NotFound(code string) *Error {
	return NewError(http.StatusNotFound, code, "not found")
}

func BadRequest(code, message string) *Error {
	return NewError(http.StatusBadRequest, code, message)
}

func Internal() *Error {
	return NewError(http.StatusInternalServerError, "internal_error", "something went wrong")
}

type envelope struct {
	Error *Error `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the JSON error envelope. Anything that is
// not an *Error becomes a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Internal()
	}
	WriteJSON(w, e.Status, envelope{Error: e})
}
