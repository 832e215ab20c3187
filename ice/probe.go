package ice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// DefaultProbeTimeout is how long a probe waits for the remote's datagram.
const DefaultProbeTimeout = 2 * time.Second

// Prober checks a single pair. A nil error means the pair is reachable.
type Prober interface {
	Probe(ctx context.Context, p *Pair, payload []byte, timeout time.Duration) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, p *Pair, payload []byte, timeout time.Duration) error

func (f ProberFunc) Probe(ctx context.Context, p *Pair, payload []byte, timeout time.Duration) error {
	return f(ctx, p, payload, timeout)
}

// DefaultRetransmitInterval is how often a probe resends its payload while
// waiting for the remote.
const DefaultRetransmitInterval = 200 * time.Millisecond

// UDPProber binds the pair's local address, sends the payload to the
// remote address and waits for any datagram coming back from exactly that
// address. The payload is resent every Retransmit until then, and sent once
// more on success so a remote probing at the same time sees it too.
type UDPProber struct {
	// Retransmit defaults to DefaultRetransmitInterval. Negative sends once.
	Retransmit time.Duration
}

func (u UDPProber) Probe(ctx context.Context, p *Pair, payload []byte, timeout time.Duration) error {
	remote := p.Remote.Addr()
	conn, err := dialPair(ctx, p.Local.Addr(), remote)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	every := u.Retransmit
	if every == 0 {
		every = DefaultRetransmitInterval
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1500)

	for {
		if _, err := conn.Write(payload); err != nil && !errors.Is(err, syscall.ECONNREFUSED) {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return fmt.Errorf("send to %s: %w", remote, err)
		}

		wait := deadline
		if every > 0 {
			if next := time.Now().Add(every); next.Before(deadline) {
				wait = next
			}
		}
		ok, err := awaitFrom(conn, remote, buf, wait)
		switch {
		case ok:
			_, _ = conn.Write(payload)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return fmt.Errorf("receive from %s: %w", remote, err)
		case !time.Now().Before(deadline):
			return fmt.Errorf("%w: %s after %s", ErrProbeTimeout, remote, timeout)
		}
	}
}

// awaitFrom reads until a datagram from remote arrives (true) or until is
// reached (false, nil).
func awaitFrom(conn *net.UDPConn, remote *net.UDPAddr, buf []byte, until time.Time) (bool, error) {
	if err := conn.SetReadDeadline(until); err != nil {
		return false, err
	}
	for {
		_, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return false, nil
			}
			// The remote may not be listening yet.
			if errors.Is(err, syscall.ECONNREFUSED) {
				continue
			}
			return false, err
		}
		if from.Port == remote.Port && from.IP.Equal(remote.IP) {
			return true, nil
		}
	}
}

// dialPair opens a UDP socket bound to local and connected to remote.
func dialPair(ctx context.Context, local, remote *net.UDPAddr) (*net.UDPConn, error) {
	d := net.Dialer{LocalAddr: local, Control: reuseControl}
	c, err := d.DialContext(ctx, "udp", remote.String())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", local, err)
	}
	return c.(*net.UDPConn), nil
}
