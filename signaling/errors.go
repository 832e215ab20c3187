package signaling

import "errors"

var (
	// ErrPeerNotFound is reported when the relay has no peer registered
	// under the target name.
	ErrPeerNotFound = errors.New("signaling: peer not found")

	// ErrClosed is returned once the connection or pipe is closed.
	ErrClosed = errors.New("signaling: closed")

	// ErrRegistration is returned when the relay refuses a registration.
	ErrRegistration = errors.New("signaling: registration failed")

	// ErrInvalidMessage is returned for envelopes missing required fields.
	ErrInvalidMessage = errors.New("signaling: invalid message")
)
