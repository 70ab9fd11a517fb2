package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// msgNotJSON is reported for bodies that are missing, malformed or not
// declared as JSON.
const msgNotJSON = "Request body must be JSON"

// publicError is implemented by domain errors that carry an HTTP status
// and a client-facing message.
type publicError interface {
	error
	StatusCode() int
	PublicMessage() string
}

// badRequestError is a decode failure.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string         { return e.msg }
func (e *badRequestError) Unwrap() error         { return e.err }
func (e *badRequestError) StatusCode() int       { return http.StatusBadRequest }
func (e *badRequestError) PublicMessage() string { return e.msg }

// decode reads a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return &badRequestError{msg: msgNotJSON, err: err}
	}

	err = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return &badRequestError{msg: fmt.Sprintf("Invalid value for %s", typeErr.Field), err: err}
	default:
		return &badRequestError{msg: msgNotJSON, err: err}
	}
}

func encode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = encode(w, v)
}

// writeError renders err as {"error": "..."}. Errors without a public
// message become a generic 500 and are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe publicError
	if errors.As(err, &pe) {
		if pe.StatusCode() >= 500 {
			loggerFrom(r.Context()).Error("request failed", "status", pe.StatusCode(), "error", err)
		}
		writeJSON(w, pe.StatusCode(), errorBody(pe.PublicMessage()))
		return
	}
	loggerFrom(r.Context()).Error("internal error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody("Internal server error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
