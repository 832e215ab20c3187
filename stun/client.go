package stun

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DiscoveryTimeout is how long a single discovery transaction waits for its response.
const DiscoveryTimeout = 5 * time.Second

// Client is a small UDP client for the Binding transaction.
type Client struct {
	// Timeout is the per-transaction deadline used if ctx has no deadline.
	Timeout time.Duration

	// Retries controls how many times the same request is retransmitted on timeout.
	Retries int

	// RTO is the initial retransmission timeout. It doubles after every retransmit.
	RTO time.Duration
}

// NewClient returns a Client with retransmission enabled.
func NewClient() *Client {
	return &Client{
		Timeout: 3 * time.Second,
		Retries: 6,
		RTO:     250 * time.Millisecond,
	}
}

// NewDiscoveryClient returns a Client that sends exactly one request and waits
// DiscoveryTimeout for the answer.
func NewDiscoveryClient() *Client {
	return &Client{
		Timeout: DiscoveryTimeout,
		Retries: 0,
		RTO:     DiscoveryTimeout,
	}
}

// BindingRequest resolves serverAddr ("host:port"), performs a Binding
// transaction from an ephemeral socket and returns the mapped address.
func (c *Client) BindingRequest(ctx context.Context, serverAddr string) (MappedAddress, error) {
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return MappedAddress{}, err
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return MappedAddress{}, err
	}
	defer conn.Close()

	return c.BindingRequestConn(ctx, conn)
}

// BindingRequestConn performs a Binding transaction on a connected socket (DialUDP).
func (c *Client) BindingRequestConn(ctx context.Context, conn *net.UDPConn) (MappedAddress, error) {
	if conn == nil {
		return MappedAddress{}, ErrNilConn
	}
	return c.transact(ctx, conn, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	}, func(buf []byte) (int, bool, error) {
		n, err := conn.Read(buf)
		return n, true, err
	})
}

// BindingRequestFrom performs a Binding transaction on an unconnected socket
// (ListenUDP), so the mapped address describes that socket's binding.
// Datagrams from any source other than server are ignored.
func (c *Client) BindingRequestFrom(ctx context.Context, conn *net.UDPConn, server *net.UDPAddr) (MappedAddress, error) {
	if conn == nil {
		return MappedAddress{}, ErrNilConn
	}
	if server == nil {
		return MappedAddress{}, ErrInvalidAddress
	}
	return c.transact(ctx, conn, func(b []byte) error {
		_, err := conn.WriteToUDP(b, server)
		return err
	}, func(buf []byte) (int, bool, error) {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return 0, false, err
		}
		return n, sameAddr(from, server), nil
	})
}

// transact runs one Binding transaction. read reports whether the datagram
// came from the server.
func (c *Client) transact(
	ctx context.Context,
	conn *net.UDPConn,
	write func([]byte) error,
	read func([]byte) (int, bool, error),
) (MappedAddress, error) {
	tid, err := NewTransactionID()
	if err != nil {
		return MappedAddress{}, err
	}
	req := NewBindingRequest(tid).Marshal()

	deadline, ok := ctx.Deadline()
	if !ok || (c.Timeout > 0 && time.Now().Add(c.Timeout).Before(deadline)) {
		deadline = time.Now().Add(c.Timeout)
	}

	// Unblock a pending read as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()
	defer conn.SetReadDeadline(time.Time{})

	rto := c.RTO
	if rto <= 0 {
		rto = c.Timeout
	}
	buf := make([]byte, 1500)

	for attempt := 0; attempt <= c.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return MappedAddress{}, err
		}
		if err := write(req); err != nil {
			return MappedAddress{}, err
		}

		waitUntil := time.Now().Add(rto)
		if attempt == c.Retries || waitUntil.After(deadline) {
			waitUntil = deadline
		}
		_ = conn.SetReadDeadline(waitUntil)

		resp, err := c.await(buf, tid, read)
		if err == nil {
			return interpret(resp)
		}
		if cerr := ctx.Err(); cerr != nil {
			return MappedAddress{}, cerr
		}
		if !isTimeout(err) {
			return MappedAddress{}, err
		}
		if !time.Now().Before(deadline) {
			break
		}
		rto *= 2
	}
	return MappedAddress{}, ErrTimeout
}

// await reads until a response with the expected transaction id arrives or
// the read deadline fires. Foreign, malformed and mismatched datagrams are
// discarded.
func (c *Client) await(buf []byte, tid TransactionID, read func([]byte) (int, bool, error)) (*Message, error) {
	for {
		n, fromServer, err := read(buf)
		if err != nil {
			return nil, err
		}
		if !fromServer {
			continue
		}
		resp, err := Parse(buf[:n])
		if err != nil || resp.TransactionID != tid {
			continue
		}
		return resp, nil
	}
}

func interpret(resp *Message) (MappedAddress, error) {
	if resp.Method != MethodBinding {
		return MappedAddress{}, fmt.Errorf("%w: method %#04x", ErrUnsupported, resp.Method)
	}
	switch resp.Class {
	case ClassSuccessResponse:
		return FindMappedAddress(resp)
	case ClassErrorResponse:
		if a, ok := resp.GetAttribute(AttrErrorCode); ok {
			if code, err := DecodeErrorCode(a); err == nil {
				return MappedAddress{}, code
			}
		}
		return MappedAddress{}, errors.New("stun: received error response")
	default:
		return MappedAddress{}, ErrNotSTUN
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
