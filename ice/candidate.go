package ice

import (
	"encoding/json"
	"fmt"
	"net"
	"slices"
	"strconv"
)

// Candidate is a transport address a peer might be reachable at.
// It is immutable once built; accessors hand out copies.
type Candidate struct {
	foundation  string
	component   int
	transport   Transport
	priority    uint32
	ip          net.IP
	port        int
	kind        Kind
	relatedIP   net.IP
	relatedPort int
}

// CandidateParams describes a candidate for NewCandidate.
type CandidateParams struct {
	Foundation string
	Component  int // zero means DefaultComponent
	Transport  Transport
	// Priority is taken as is when non-zero; otherwise it is computed from
	// Kind, LocalPreference and Component.
	Priority        uint32
	LocalPreference uint16
	IP              net.IP
	Port            int
	Kind            Kind
	RelatedIP       net.IP
	RelatedPort     int
}

// NewCandidate validates p and builds a Candidate from it.
func NewCandidate(p CandidateParams) (Candidate, error) {
	if p.Component == 0 {
		p.Component = DefaultComponent
	}
	if p.Transport == 0 {
		p.Transport = TransportUDP
	}

	switch {
	case p.Component < 1 || p.Component > 256:
		return Candidate{}, fmt.Errorf("%w: component %d", ErrInvalidCandidate, p.Component)
	case p.Transport != TransportUDP:
		return Candidate{}, fmt.Errorf("%w: transport %v", ErrInvalidCandidate, p.Transport)
	case !p.Kind.Valid():
		return Candidate{}, fmt.Errorf("%w: %v", ErrInvalidCandidate, p.Kind)
	case p.IP == nil || p.IP.IsUnspecified():
		return Candidate{}, fmt.Errorf("%w: address %v", ErrInvalidCandidate, p.IP)
	case p.Port < 0 || p.Port > 65535:
		return Candidate{}, fmt.Errorf("%w: port %d", ErrInvalidCandidate, p.Port)
	case p.Kind == KindHost && p.RelatedIP != nil:
		return Candidate{}, fmt.Errorf("%w: host candidate with related address", ErrInvalidCandidate)
	case p.RelatedPort < 0 || p.RelatedPort > 65535:
		return Candidate{}, fmt.Errorf("%w: related port %d", ErrInvalidCandidate, p.RelatedPort)
	}

	prio := p.Priority
	if prio == 0 {
		prio = Priority(p.Kind, p.LocalPreference, p.Component)
	}

	c := Candidate{
		foundation: p.Foundation,
		component:  p.Component,
		transport:  p.Transport,
		priority:   prio,
		ip:         normalizeIP(p.IP),
		port:       p.Port,
		kind:       p.Kind,
	}
	if p.RelatedIP != nil {
		c.relatedIP = normalizeIP(p.RelatedIP)
		c.relatedPort = p.RelatedPort
	}
	return c, nil
}

// NewHostCandidate builds a host candidate for a bound local address.
func NewHostCandidate(foundation string, ip net.IP, port int, localPreference uint16) (Candidate, error) {
	return NewCandidate(CandidateParams{
		Foundation:      foundation,
		IP:              ip,
		Port:            port,
		Kind:            KindHost,
		LocalPreference: localPreference,
	})
}

// NewServerReflexiveCandidate builds the reflexive candidate for base as
// observed at ip:port. It inherits the base's local preference.
func NewServerReflexiveCandidate(foundation string, base Candidate, ip net.IP, port int) (Candidate, error) {
	return NewCandidate(CandidateParams{
		Foundation:      foundation,
		Component:       base.component,
		IP:              ip,
		Port:            port,
		Kind:            KindServerReflexive,
		LocalPreference: base.LocalPreference(),
		RelatedIP:       base.ip,
		RelatedPort:     base.port,
	})
}

func normalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return slices.Clone(v4)
	}
	return slices.Clone(ip)
}

func (c Candidate) Foundation() string   { return c.foundation }
func (c Candidate) Component() int       { return c.component }
func (c Candidate) Transport() Transport { return c.transport }
func (c Candidate) Priority() uint32     { return c.priority }
func (c Candidate) IP() net.IP           { return slices.Clone(c.ip) }
func (c Candidate) Port() int            { return c.port }
func (c Candidate) Kind() Kind           { return c.kind }

// LocalPreference extracts the local preference encoded in the priority.
func (c Candidate) LocalPreference() uint16 { return uint16(c.priority >> 8) }

// RelatedAddr returns the base of a reflexive candidate, nil for host ones.
func (c Candidate) RelatedAddr() *net.UDPAddr {
	if c.relatedIP == nil {
		return nil
	}
	return &net.UDPAddr{IP: slices.Clone(c.relatedIP), Port: c.relatedPort}
}

// Addr returns the candidate's transport address.
func (c Candidate) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: slices.Clone(c.ip), Port: c.port}
}

// Equal reports whether a and b describe the same candidate. Foundation is
// not compared.
func (c Candidate) Equal(o Candidate) bool {
	return c.kind == o.kind &&
		c.transport == o.transport &&
		c.component == o.component &&
		c.port == o.port &&
		c.ip.Equal(o.ip)
}

// String renders e.g. "host 192.168.1.5:50000 prio=2130706431".
func (c Candidate) String() string {
	s := fmt.Sprintf("%s %s prio=%d", c.kind, net.JoinHostPort(c.ip.String(), strconv.Itoa(c.port)), c.priority)
	if c.relatedIP != nil {
		s += " raddr=" + net.JoinHostPort(c.relatedIP.String(), strconv.Itoa(c.relatedPort))
	}
	return s
}

type candidateJSON struct {
	Foundation     string `json:"foundation"`
	Component      int    `json:"component"`
	Transport      string `json:"transport"`
	Priority       uint32 `json:"priority"`
	Address        string `json:"address"`
	Port           int    `json:"port"`
	Type           string `json:"type"`
	RelatedAddress string `json:"related_address,omitempty"`
	RelatedPort    int    `json:"related_port,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c Candidate) MarshalJSON() ([]byte, error) {
	w := candidateJSON{
		Foundation: c.foundation,
		Component:  c.component,
		Transport:  c.transport.String(),
		Priority:   c.priority,
		Address:    c.ip.String(),
		Port:       c.port,
		Type:       c.kind.String(),
	}
	if c.relatedIP != nil {
		w.RelatedAddress = c.relatedIP.String()
		w.RelatedPort = c.relatedPort
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded candidate is
// validated like NewCandidate does.
func (c *Candidate) UnmarshalJSON(b []byte) error {
	var w candidateJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}

	kind, err := ParseKind(w.Type)
	if err != nil {
		return err
	}
	transport, err := ParseTransport(w.Transport)
	if err != nil {
		return err
	}
	ip := net.ParseIP(w.Address)
	if ip == nil {
		return fmt.Errorf("%w: address %q", ErrInvalidCandidate, w.Address)
	}
	p := CandidateParams{
		Foundation: w.Foundation,
		Component:  w.Component,
		Transport:  transport,
		Priority:   w.Priority,
		IP:         ip,
		Port:       w.Port,
		Kind:       kind,
	}
	if w.RelatedAddress != "" {
		if p.RelatedIP = net.ParseIP(w.RelatedAddress); p.RelatedIP == nil {
			return fmt.Errorf("%w: related address %q", ErrInvalidCandidate, w.RelatedAddress)
		}
		p.RelatedPort = w.RelatedPort
	}

	built, err := NewCandidate(p)
	if err != nil {
		return err
	}
	*c = built
	return nil
}

// SortCandidates orders candidates by priority, highest first. Equal
// priorities keep their relative order.
func SortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		switch {
		case a.priority > b.priority:
			return -1
		case a.priority < b.priority:
			return 1
		}
		return 0
	})
}
