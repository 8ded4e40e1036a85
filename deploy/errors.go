package deploy

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken is returned when REPLIT_API_TOKEN is not set.
	ErrMissingToken = errors.New("deploy: REPLIT_API_TOKEN is required")
	// ErrUnexpectedStatus marks responses whose status differs from the expected one.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Error reports a failed deployment call. StatusCode is zero when no response
// was received. Body holds the response body as returned by the API.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := "deploy: " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
