package relay

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrNotStarted is returned when the relay is used before Start.
	ErrNotStarted = errors.New("relay: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("relay: already started")

	// ErrNoCollections is returned when a request names no collection.
	ErrNoCollections = errors.New("relay: no collections given")

	// ErrInvalidCommand is returned for an undecodable bus command.
	ErrInvalidCommand = errors.New("relay: invalid command payload")
)
