package signaling

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// Hub is a websocket relay: peers register under a name and the hub
// forwards candidates, offers and answers between them.
type Hub struct {
	upgrader websocket.Upgrader
	log      logging.LeveledLogger

	mu    sync.RWMutex
	peers map[string]*peerConn
	stats Stats
}

// peerConn serializes writes; gorilla connections allow one writer at a time.
type peerConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peerConn) write(msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(msg)
}

// NewHub returns an empty relay. log may be nil.
func NewHub(log logging.LeveledLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:   log,
		peers: map[string]*peerConn{},
	}
}

// Stats returns a snapshot of the relay counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// Peers returns the registered names, sorted.
func (h *Hub) Peers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activePeers()
}

func (h *Hub) activePeers() []string {
	names := make([]string, 0, len(h.peers))
	for name := range h.peers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.warnf("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	h.mu.Lock()
	h.stats.Connections++
	h.mu.Unlock()
	h.infof("connection from %s", r.RemoteAddr)

	pc := &peerConn{conn: c}
	var name string
	defer func() {
		_ = c.Close()
		if name == "" {
			return
		}
		h.mu.Lock()
		if h.peers[name] == pc {
			delete(h.peers, name)
		}
		h.mu.Unlock()
		h.infof("peer %s disconnected", name)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.warnf("invalid message from %s: %v", r.RemoteAddr, err)
			continue
		}

		switch {
		case msg.Type == TypeRegister:
			if msg.PeerName == "" {
				h.warnf("registration without peer name from %s", r.RemoteAddr)
				_ = pc.write(Message{Type: TypeError, Message: "peer_name required"})
				continue
			}
			name = msg.PeerName
			h.register(name, pc)

		case msg.Type.relayed():
			if msg.From == "" || msg.To == "" {
				h.warnf("%s missing from/to fields", msg.Type)
				continue
			}
			h.relay(pc, msg)

		case msg.Type == TypePing:
			_ = pc.write(Message{Type: TypePong, Timestamp: timestamp()})

		case msg.Type == TypeGetStats:
			h.mu.RLock()
			st := h.stats
			peers := h.activePeers()
			h.mu.RUnlock()
			_ = pc.write(Message{Type: TypeStats, Stats: &st, ActivePeers: peers, Timestamp: timestamp()})

		default:
			h.warnf("unknown message type %q", msg.Type)
		}
	}
}

func (h *Hub) register(name string, pc *peerConn) {
	h.mu.Lock()
	if _, ok := h.peers[name]; ok {
		h.warnf("peer %s already registered, replacing connection", name)
	}
	h.peers[name] = pc
	h.stats.PeersRegistered++
	peers := h.activePeers()
	h.mu.Unlock()

	h.infof("peer registered: %s, active: %v", name, peers)
	_ = pc.write(Message{Type: TypeRegistrationSuccess, PeerName: name, ActivePeers: peers})
}

func (h *Hub) relay(from *peerConn, msg Message) {
	h.mu.RLock()
	target, ok := h.peers[msg.To]
	h.mu.RUnlock()

	if !ok {
		h.warnf("target peer %s not found", msg.To)
		_ = from.write(Message{Type: TypeError, To: msg.From, Message: fmt.Sprintf("Peer %s not found", msg.To)})
		return
	}
	if err := target.write(msg); err != nil {
		h.errorf("relay to %s: %v", msg.To, err)
		return
	}

	h.mu.Lock()
	h.stats.MessagesRelayed++
	if msg.Type == TypeCandidate {
		h.stats.CandidatesExchanged++
	}
	h.mu.Unlock()

	if msg.Type == TypeCandidate && msg.Candidate != nil {
		h.infof("relayed candidate %s -> %s: %s", msg.From, msg.To, msg.Candidate)
	} else {
		h.infof("relayed %s %s -> %s", msg.Type, msg.From, msg.To)
	}
}

func (h *Hub) infof(format string, args ...any) {
	if h.log != nil {
		h.log.Infof(format, args...)
	}
}

func (h *Hub) warnf(format string, args ...any) {
	if h.log != nil {
		h.log.Warnf(format, args...)
	}
}

func (h *Hub) errorf(format string, args ...any) {
	if h.log != nil {
		h.log.Errorf(format, args...)
	}
}
