package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedResponse is returned when a response cannot be decoded into the
	// expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrInvalidRequest is returned when request parameters fail validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError is a non-2xx response or a success=false envelope.
type APIError struct {
	StatusCode  int
	Message     string
	ForceLogout bool
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, msg)
}

// IsUnauthorized reports whether err is an APIError signalling a dead session.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.ForceLogout
}
