package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aethiopicuschan/icelab/ice"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// Client is a peer's connection to a Hub. It implements ice.Signaler and
// ice.EndOfCandidatesSender for the candidates of one remote peer.
type Client struct {
	conn   *websocket.Conn
	name   string
	remote string
	log    logging.LeveledLogger

	writeMu sync.Mutex
	reqMu   sync.Mutex

	in      chan inbound
	replies chan Message

	errMu   sync.Mutex
	pending error // relay error not yet reported by Send
	readErr error

	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type inbound struct {
	cand ice.Candidate
	eoc  bool
}

// Dial connects to the relay at url, registers as name and waits for the
// registration to be confirmed. Candidates are exchanged with remote.
func Dial(ctx context.Context, url, name, remote string, log logging.LeveledLogger) (*Client, error) {
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		name:    name,
		remote:  remote,
		log:     log,
		in:      make(chan inbound, 64),
		replies: make(chan Message, 8),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if err := c.register(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) register(ctx context.Context) error {
	if err := c.write(ctx, Message{Type: TypeRegister, PeerName: c.name}); err != nil {
		return err
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return fmt.Errorf("%w: %w", ErrRegistration, err)
		}
		switch msg.Type {
		case TypeRegistrationSuccess:
			c.infof("registered as %s, active peers %v", c.name, msg.ActivePeers)
			return nil
		case TypeError:
			return fmt.Errorf("%w: %s", ErrRegistration, msg.Message)
		}
	}
}

// Name is the local registration name.
func (c *Client) Name() string { return c.name }

// Send relays a candidate to the remote peer. A relay error reported for
// an earlier message is returned here.
func (c *Client) Send(ctx context.Context, cand ice.Candidate) error {
	if err := c.takePending(); err != nil {
		return err
	}
	return c.write(ctx, Message{Type: TypeCandidate, From: c.name, To: c.remote, Candidate: &cand})
}

// SendEndOfCandidates tells the remote peer that every candidate was sent.
func (c *Client) SendEndOfCandidates(ctx context.Context) error {
	if err := c.takePending(); err != nil {
		return err
	}
	return c.write(ctx, Message{Type: TypeEndOfCandidates, From: c.name, To: c.remote})
}

// Receive returns the next candidate sent by the remote peer, or
// ice.ErrEndOfCandidates once it announced the end.
func (c *Client) Receive(ctx context.Context) (ice.Candidate, error) {
	select {
	case in := <-c.in:
		return in.unpack()
	default:
	}

	select {
	case <-ctx.Done():
		return ice.Candidate{}, ctx.Err()
	case in := <-c.in:
		return in.unpack()
	case <-c.done:
		return ice.Candidate{}, c.closedErr()
	}
}

func (in inbound) unpack() (ice.Candidate, error) {
	if in.eoc {
		return ice.Candidate{}, ice.ErrEndOfCandidates
	}
	return in.cand, nil
}

// Ping checks the relay is alive and returns the round trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.request(ctx, Message{Type: TypePing}, TypePong); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Stats asks the relay for its counters and the registered peers.
func (c *Client) Stats(ctx context.Context) (Stats, []string, error) {
	resp, err := c.request(ctx, Message{Type: TypeGetStats}, TypeStats)
	if err != nil {
		return Stats{}, nil, err
	}
	var st Stats
	if resp.Stats != nil {
		st = *resp.Stats
	}
	return st, resp.ActivePeers, nil
}

// WaitForPeer polls the relay until name is registered.
func (c *Client) WaitForPeer(ctx context.Context, name string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, peers, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		if slices.Contains(peers, name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Client) request(ctx context.Context, req Message, want Type) (Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if err := c.write(ctx, req); err != nil {
		return Message{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-c.done:
			return Message{}, c.closedErr()
		case msg := <-c.replies:
			if msg.Type == want {
				return msg, nil
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	dl, ok := ctx.Deadline()
	if !ok {
		dl = time.Now().Add(10 * time.Second)
	}
	_ = c.conn.SetWriteDeadline(dl)
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.errMu.Lock()
			c.readErr = err
			c.errMu.Unlock()
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.warnf("invalid message: %v", err)
			continue
		}

		switch msg.Type {
		case TypeCandidate:
			if msg.From != c.remote || msg.Candidate == nil {
				c.warnf("ignoring candidate from %q", msg.From)
				continue
			}
			c.deliver(inbound{cand: *msg.Candidate})
		case TypeEndOfCandidates:
			if msg.From == c.remote {
				c.deliver(inbound{eoc: true})
			}
		case TypePong, TypeStats:
			select {
			case c.replies <- msg:
			default:
			}
		case TypeError:
			c.warnf("relay error: %s", msg.Message)
			err := errors.New(msg.Message)
			if strings.HasSuffix(msg.Message, "not found") {
				err = fmt.Errorf("%w: %s", ErrPeerNotFound, msg.Message)
			}
			c.errMu.Lock()
			c.pending = err
			c.errMu.Unlock()
		default:
			c.debugf("ignoring %s message", msg.Type)
		}
	}
}

func (c *Client) deliver(in inbound) {
	select {
	case c.in <- in:
	case <-c.closing:
	}
}

func (c *Client) takePending() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	err := c.pending
	c.pending = nil
	return err
}

func (c *Client) closedErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, c.readErr)
	}
	return ErrClosed
}

func (c *Client) infof(format string, args ...any) {
	if c.log != nil {
		c.log.Infof(format, args...)
	}
}

func (c *Client) debugf(format string, args ...any) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}

func (c *Client) warnf(format string, args ...any) {
	if c.log != nil {
		c.log.Warnf(format, args...)
	}
}
