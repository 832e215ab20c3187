package ice

import (
	"fmt"
	"strings"
)

// Kind tells how a candidate was obtained.
type Kind int

const (
	// KindHost is an address taken directly from a local interface.
	KindHost Kind = iota + 1
	// KindServerReflexive is the address a discovery server observed.
	KindServerReflexive
	// KindPeerReflexive is an address learned from a peer's check.
	KindPeerReflexive
	// KindRelay is an address allocated on a relay.
	KindRelay
)

var kindNames = map[Kind]string{
	KindHost:            "host",
	KindServerReflexive: "srflx",
	KindPeerReflexive:   "prflx",
	KindRelay:           "relay",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Preference is the type preference used in the candidate priority.
func (k Kind) Preference() uint32 {
	switch k {
	case KindHost:
		return 126
	case KindPeerReflexive:
		return 110
	case KindServerReflexive:
		return 100
	default:
		return 0
	}
}

// ParseKind parses the short names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidCandidate, s)
}

// Transport is the transport protocol of a candidate.
type Transport int

// TransportUDP is the only transport gathered and checked.
const TransportUDP Transport = iota + 1

func (t Transport) String() string {
	if t == TransportUDP {
		return "udp"
	}
	return fmt.Sprintf("transport(%d)", int(t))
}

// ParseTransport parses "udp" in any case.
func ParseTransport(s string) (Transport, error) {
	if strings.EqualFold(s, "udp") {
		return TransportUDP, nil
	}
	return 0, fmt.Errorf("%w: unknown transport %q", ErrInvalidCandidate, s)
}
