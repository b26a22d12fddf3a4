package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnreachable wraps transport failures: refused connections, DNS,
	// resets and deadlines hit before a response arrived.
	ErrUnreachable = errors.New("api unreachable")
	// ErrMalformed wraps bodies that are not JSON or lack required fields.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is returned when the API answers with a status outside the
// accepted set for the endpoint.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Body    []byte
	Message string // envelope "error" field when the body carried one
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}
