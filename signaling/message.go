package signaling

import (
	"encoding/json"
	"time"

	"github.com/aethiopicuschan/icelab/ice"
)

// Type is the envelope discriminator.
type Type string

const (
	TypeRegister            Type = "register"
	TypeRegistrationSuccess Type = "registration_success"
	TypeCandidate           Type = "ice_candidate"
	TypeEndOfCandidates     Type = "end_of_candidates"
	TypeOffer               Type = "offer"
	TypeAnswer              Type = "answer"
	TypePing                Type = "ping"
	TypePong                Type = "pong"
	TypeGetStats            Type = "get_stats"
	TypeStats               Type = "stats"
	TypeError               Type = "error"
)

// relayed reports whether messages of type t are forwarded to the peer
// named in To.
func (t Type) relayed() bool {
	switch t {
	case TypeCandidate, TypeEndOfCandidates, TypeOffer, TypeAnswer:
		return true
	}
	return false
}

// Message is the JSON envelope exchanged with the relay.
type Message struct {
	Type        Type            `json:"type"`
	PeerName    string          `json:"peer_name,omitempty"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Candidate   *ice.Candidate  `json:"candidate,omitempty"`
	SDP         json.RawMessage `json:"sdp,omitempty"`
	Message     string          `json:"message,omitempty"`
	ActivePeers []string        `json:"active_peers,omitempty"`
	Stats       *Stats          `json:"stats,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
}

// Stats are the relay counters.
type Stats struct {
	Connections         int `json:"connections"`
	MessagesRelayed     int `json:"messages_relayed"`
	PeersRegistered     int `json:"peers_registered"`
	CandidatesExchanged int `json:"candidates_exchanged"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
