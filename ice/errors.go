package ice

import "errors"

var (
	// ErrGatheringFailed is returned when not a single host candidate could be bound,
	// not even on loopback.
	ErrGatheringFailed = errors.New("ice: gathering failed")

	// ErrNoConnectivity is returned when a check batch ends without any
	// succeeded pair.
	ErrNoConnectivity = errors.New("ice: no connectivity")

	// ErrInvalidTransition is returned when a pair is asked to move to a
	// state that is not reachable from its current one.
	ErrInvalidTransition = errors.New("ice: invalid pair state transition")

	// ErrInvalidCandidate is returned for candidates that violate the model
	// (bad port, unknown kind or transport, related address on a host candidate, ...).
	ErrInvalidCandidate = errors.New("ice: invalid candidate")

	// ErrEndOfCandidates is returned by a Signaler when the remote peer has
	// announced that it sent all of its candidates.
	ErrEndOfCandidates = errors.New("ice: end of candidates")

	// ErrNotNominated is returned when a connection is opened before a pair
	// has been nominated.
	ErrNotNominated = errors.New("ice: no nominated pair")

	// ErrConnectionClosed is returned when using a closed Conn.
	ErrConnectionClosed = errors.New("ice: connection closed")

	// ErrProbeTimeout is recorded when a connectivity probe saw no answer in time.
	ErrProbeTimeout = errors.New("ice: probe timed out")
)
