package webchat

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when a message is appended before Init has been
// called. This is a programmer-usage error, not a runtime condition to
// recover from.
var ErrNoSession = errors.New("webchat: session not initialized")

// ErrNotConnected is returned when a message is sent without a prior
// successful Connect.
var ErrNotConnected = errors.New("webchat: not connected")

// ReconnectError is returned by Connect after the bounded reconnect attempts
// are exhausted.
type ReconnectError struct {
	Attempts int   // number of consecutive failed attempts
	Last     error // the error from the final attempt
}

// Error returns a formatted message describing the exhausted reconnect loop.
func (e *ReconnectError) Error() string {
	return fmt.Sprintf("webchat: giving up after %d reconnect attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the error from the final attempt.
func (e *ReconnectError) Unwrap() error {
	return e.Last
}

// HTTPError reports a non-2xx response from the chat backend.
type HTTPError struct {
	StatusCode int
	URL        string
}

// Error returns a formatted message describing the failed request.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("webchat: %s returned status %d", e.URL, e.StatusCode)
}
