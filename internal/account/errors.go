package account

import (
	"fmt"
	"net/http"
)

// Error is a failure that should reach the client with a specific HTTP
// status and message.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status for the error.
func (e *Error) StatusCode() int { return e.Status }

// PublicMessage returns the text shown to the client.
func (e *Error) PublicMessage() string { return e.Message }

func badRequest(msg string) *Error { return &Error{Status: http.StatusBadRequest, Message: msg} }
func notFound(msg string) *Error   { return &Error{Status: http.StatusNotFound, Message: msg} }

var errInvalidCredentials = &Error{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
