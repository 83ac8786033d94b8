package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the backend rejected the credential. On a
// profile fetch it means "attempt a refresh"; on a refresh it means the
// session is over.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is any non-2xx response other than 401.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// IsUnauthorized reports whether err stems from an invalid or expired
// credential as opposed to a network or server problem.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
