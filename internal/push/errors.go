package push

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the push client.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidConfig is returned by New when the ClientConfig fails validation.
	ErrInvalidConfig = errors.New("push: invalid configuration")

	// ErrInvalidTopic is returned when subscribing with an empty collection name.
	ErrInvalidTopic = errors.New("push: topic cannot be empty")

	// ErrNilListener is returned when subscribing with a nil listener.
	ErrNilListener = errors.New("push: listener cannot be nil")

	// ErrClientClosed is returned when operating on a client after Close.
	ErrClientClosed = errors.New("push: client closed")

	// ErrNotOpen is returned internally when a frame is sent while the
	// connection is not Open.
	ErrNotOpen = errors.New("push: connection not open")

	// ErrTransportNotOpen is returned by Transport.Send before the socket
	// is established or after it has been closed.
	ErrTransportNotOpen = errors.New("push: transport not open")

	// ErrDialFailed wraps failures to establish the socket.
	ErrDialFailed = errors.New("push: dial failed")

	// ErrSendFailed wraps socket write failures.
	ErrSendFailed = errors.New("push: send failed")

	// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
	ErrMalformedFrame = errors.New("push: malformed frame")
)

// ServerError carries the description from an inbound "error" frame.
type ServerError struct {
	Description string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("push: server error: %s", e.Description)
}
