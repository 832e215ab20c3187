package stun

import "errors"

var (
	// ErrNotSTUN indicates that the packet is not a valid discovery message.
	ErrNotSTUN = errors.New("stun: not a stun message")

	// ErrUnsupported indicates that the message/attribute is not supported by this implementation.
	ErrUnsupported = errors.New("stun: unsupported feature")

	// ErrNoMappedAddress indicates that the response did not contain any mapped address attribute.
	ErrNoMappedAddress = errors.New("stun: no mapped address in response")

	// ErrTimeout indicates that the transaction timed out.
	ErrTimeout = errors.New("stun: timeout")

	// ErrInvalidAddress is returned when an address cannot be encoded.
	ErrInvalidAddress = errors.New("stun: invalid address")

	// ErrNilConn is returned when a client or server is given no socket.
	ErrNilConn = errors.New("stun: nil connection")
)
