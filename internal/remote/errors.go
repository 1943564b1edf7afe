package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned when the breaker for a resource refuses calls.
	ErrCircuitOpen = errors.New("remote: circuit open")

	// ErrBulkheadFull is returned when no call slot frees up in time.
	ErrBulkheadFull = errors.New("remote: too many concurrent calls")
)

// Error is a non-2xx answer from the platform API.
type Error struct {
	Op         string
	StatusCode int
	Messages   []string
}

func (e *Error) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("%s: platform returned %d: %s", e.Op, e.StatusCode, e.Messages[0])
	}
	return fmt.Sprintf("%s: platform returned %d", e.Op, e.StatusCode)
}

// Message returns the first platform message, if any.
func (e *Error) Message() string {
	if len(e.Messages) == 0 {
		return http.StatusText(e.StatusCode)
	}
	return e.Messages[0]
}

// IsNotFound reports whether err is a 404 from the platform API.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// IsClientError reports whether the platform rejected the request (4xx).
func IsClientError(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.StatusCode >= 400 && re.StatusCode < 500
}

// IsUnavailable reports whether the call never reached the platform because
// the breaker or bulkhead refused it.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBulkheadFull)
}
