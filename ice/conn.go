package ice

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// DefaultKeepaliveInterval is how often an idle Conn refreshes the path.
const DefaultKeepaliveInterval = 30 * time.Second

// ConnOptions tunes a Conn.
type ConnOptions struct {
	// Queue is the receive queue length. Defaults to 32. Datagrams arriving
	// while the queue is full are dropped.
	Queue int

	// KeepaliveInterval is used by StartKeepalive. Zero disables keepalives.
	KeepaliveInterval time.Duration
}

// Conn carries application datagrams over a nominated pair.
type Conn struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	in     chan []byte

	mu                sync.RWMutex
	closed            bool
	keepaliveInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// OpenConn binds the pair's local address and connects it to the remote.
func OpenConn(ctx context.Context, p *Pair, opts ConnOptions) (*Conn, error) {
	if p == nil || !p.IsNominated() {
		return nil, ErrNotNominated
	}
	conn, err := dialPair(ctx, p.Local.Addr(), p.Remote.Addr())
	if err != nil {
		return nil, err
	}

	queue := opts.Queue
	if queue <= 0 {
		queue = 32
	}
	c := &Conn{
		conn:              conn,
		remote:            p.Remote.Addr(),
		in:                make(chan []byte, queue),
		keepaliveInterval: opts.KeepaliveInterval,
		done:              make(chan struct{}),
	}
	go c.recvLoop()
	return c, nil
}

func (c *Conn) LocalAddr() *net.UDPAddr  { return c.conn.LocalAddr().(*net.UDPAddr) }
func (c *Conn) RemoteAddr() *net.UDPAddr { return c.remote }

func (c *Conn) SetKeepalive(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepaliveInterval = interval
}

// Send writes one datagram to the remote.
func (c *Conn) Send(p []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	_, err := c.conn.Write(p)
	return err
}

// Recv returns the next datagram from the remote. Keepalives and late
// connectivity probes are not delivered.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p, ok := <-c.in:
		if !ok {
			return nil, ErrConnectionClosed
		}
		return p, nil
	}
}

// StartKeepalive sends an empty datagram every keepalive interval until
// ctx is done or the Conn is closed.
func (c *Conn) StartKeepalive(ctx context.Context) {
	c.mu.RLock()
	interval := c.keepaliveInterval
	c.mu.RUnlock()

	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				_ = c.Send(nil)
			}
		}
	}()
}

// Close releases the socket. Pending and later Recv calls return
// ErrConnectionClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) recvLoop() {
	defer close(c.in)
	buf := make([]byte, 64*1024)

	for {
		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// ICMP errors surface on connected sockets; the path may recover.
			continue
		}
		if n == 0 || bytes.HasPrefix(buf[:n], []byte(checkPrefix)) {
			continue
		}
		if from.Port != c.remote.Port || !from.IP.Equal(c.remote.IP) {
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		select {
		case c.in <- frame:
		default:
		}
	}
}
