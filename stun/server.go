package stun

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultSoftware is advertised in responses when Server.Software is empty.
const DefaultSoftware = "icelab discovery server"

// Server answers Binding requests over UDP with the observed source address
// encoded as XOR-MAPPED-ADDRESS. Requests for any other method get a
// 400 error response; datagrams that do not parse are dropped.
type Server struct {
	// Conn is the UDP socket the server reads from and writes to.
	Conn *net.UDPConn

	// Software is sent as a SOFTWARE attribute. Empty means DefaultSoftware;
	// "-" disables the attribute.
	Software string

	// ReadTimeout, if > 0, bounds each read so Close and ctx are noticed promptly.
	ReadTimeout time.Duration

	// MaxPacketSize is the receive buffer size. Defaults to 1500.
	MaxPacketSize int

	// Log receives per-request and error logging. Nil disables logging.
	Log logging.LeveledLogger

	statsMu sync.Mutex
	stats   ServerStats
	clients map[string]struct{}

	onceClose sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// ServerStats counts what the server has handled.
type ServerStats struct {
	RequestsReceived int
	ResponsesSent    int
	Errors           int
	UniqueClients    int
}

// ListenUDP creates a Server bound to addr (e.g. "0.0.0.0:3478").
func ListenUDP(addr string) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return NewServer(conn), nil
}

// NewServer wraps an existing socket.
func NewServer(conn *net.UDPConn) *Server {
	return &Server{
		Conn:          conn,
		ReadTimeout:   time.Second,
		MaxPacketSize: 1500,
		clients:       make(map[string]struct{}),
		closeCh:       make(chan struct{}),
	}
}

// Addr returns the local address the server is bound to.
func (s *Server) Addr() *net.UDPAddr {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.LocalAddr().(*net.UDPAddr)
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() ServerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	st := s.stats
	st.UniqueClients = len(s.clients)
	return st
}

// Close stops the server and closes the socket. It is safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.onceClose.Do(func() {
		close(s.closeCh)
		if s.Conn != nil {
			err = s.Conn.Close()
		}
	})
	s.wg.Wait()
	return err
}

// Serve runs the server loop until Close is called.
func (s *Server) Serve() error {
	return s.ServeContext(context.Background())
}

// ServeContext runs the server loop until ctx is done, Close is called or
// the socket fails.
func (s *Server) ServeContext(ctx context.Context) error {
	if s.Conn == nil {
		return ErrNilConn
	}
	s.wg.Add(1)
	defer s.wg.Done()

	size := s.MaxPacketSize
	if size <= 0 {
		size = 1500
	}
	buf := make([]byte, size)

	s.infof("discovery server listening on %s", s.Conn.LocalAddr())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return nil
		default:
		}

		if s.ReadTimeout > 0 {
			_ = s.Conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		}

		n, raddr, err := s.Conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-s.closeCh:
				return nil
			default:
			}
			return err
		}

		s.handlePacket(buf[:n], raddr)
	}
}

func (s *Server) handlePacket(pkt []byte, raddr *net.UDPAddr) {
	s.count(func(st *ServerStats) { st.RequestsReceived++ })
	s.statsMu.Lock()
	if s.clients == nil {
		s.clients = make(map[string]struct{})
	}
	s.clients[raddr.IP.String()] = struct{}{}
	s.statsMu.Unlock()

	req, err := Parse(pkt)
	if err != nil {
		s.count(func(st *ServerStats) { st.Errors++ })
		s.warnf("dropping malformed datagram from %s: %v", raddr, err)
		return
	}
	if req.Class != ClassRequest {
		return
	}

	var resp *Message
	if req.Method == MethodBinding {
		resp, err = s.bindingSuccess(req, raddr)
		if err != nil {
			s.count(func(st *ServerStats) { st.Errors++ })
			s.errorf("building response for %s: %v", raddr, err)
			resp = s.errorResponse(req, CodeServerError, "Server Error")
		}
	} else {
		s.warnf("unsupported method %#04x from %s", req.Method, raddr)
		resp = s.errorResponse(req, CodeBadRequest, "Bad Request")
	}

	if _, err := s.Conn.WriteToUDP(resp.Marshal(), raddr); err != nil {
		s.count(func(st *ServerStats) { st.Errors++ })
		s.errorf("write to %s: %v", raddr, err)
		return
	}
	s.count(func(st *ServerStats) { st.ResponsesSent++ })
	s.debugf("tid=%s revealed %s", req.TransactionID, raddr)
}

func (s *Server) bindingSuccess(req *Message, raddr *net.UDPAddr) (*Message, error) {
	xma, err := EncodeXORMappedAddress(raddr, req.TransactionID)
	if err != nil {
		return nil, err
	}
	resp := s.reply(req, ClassSuccessResponse)
	resp.Attributes = append(resp.Attributes, xma)
	s.addSoftware(resp)
	return resp, nil
}

func (s *Server) errorResponse(req *Message, code int, reason string) *Message {
	resp := s.reply(req, ClassErrorResponse)
	resp.Attributes = append(resp.Attributes, EncodeErrorCode(code, reason))
	s.addSoftware(resp)
	return resp
}

func (s *Server) reply(req *Message, class int) *Message {
	return &Message{
		Method:        req.Method,
		Class:         class,
		Cookie:        MagicCookie,
		TransactionID: req.TransactionID,
	}
}

func (s *Server) addSoftware(m *Message) {
	switch s.Software {
	case "-":
	case "":
		m.Attributes = append(m.Attributes, EncodeSoftware(DefaultSoftware))
	default:
		m.Attributes = append(m.Attributes, EncodeSoftware(s.Software))
	}
}

func (s *Server) count(fn func(*ServerStats)) {
	s.statsMu.Lock()
	fn(&s.stats)
	s.statsMu.Unlock()
}

func (s *Server) infof(format string, args ...any) {
	if s.Log != nil {
		s.Log.Infof(format, args...)
	}
}

func (s *Server) debugf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Debugf(format, args...)
	}
}

func (s *Server) warnf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Warnf(format, args...)
	}
}

func (s *Server) errorf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Errorf(format, args...)
	}
}
