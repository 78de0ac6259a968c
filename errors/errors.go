// Package errors defines the application error type and the sentinel
// errors shared across services and handlers. Every Error carries the
// HTTP status the UI adapter should respond with.
package errors

import (
	"fmt"
	"net/http"
)

type Error struct {
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func New(message string, status int) *Error {
	return &Error{Message: message, Status: status}
}

// Is lets sentinel comparison work through wrapping: two *Error values
// match when message and status are equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Message == t.Message && e.Status == t.Status
}

var (
	ErrNotFound            = New("report not found", http.StatusNotFound)
	ErrInvalidState        = New("operation not allowed in current report state", http.StatusConflict)
	ErrEmptyPhotoSet       = New("at least one photo is required", http.StatusBadRequest)
	ErrEmptyComment        = New("comment must not be empty", http.StatusBadRequest)
	ErrEmptyClosingComment = New("closing comment must not be empty", http.StatusBadRequest)
	ErrInvalidSite         = New("unknown construction site", http.StatusBadRequest)
	ErrImageDecode         = New("unable to decode image", http.StatusUnprocessableEntity)
	ErrSensorUnavailable   = New("geolocation sensor unavailable", http.StatusServiceUnavailable)
	ErrExportDependency    = New("export renderer unavailable", http.StatusInternalServerError)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
)

// StatusOf extracts the HTTP status from err, defaulting to 500.
func StatusOf(err error) int {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Status
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return http.StatusInternalServerError
}
