package signaling

import (
	"context"
	"sync"

	"github.com/aethiopicuschan/icelab/ice"
)

// PipeEnd is one side of an in-memory signaling channel.
type PipeEnd struct {
	in  chan inbound
	out chan inbound

	closeOnce sync.Once
	closed    chan struct{}
	peer      *PipeEnd
}

// NewPipe returns two connected signalers: what one sends the other receives.
func NewPipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan inbound, 64)
	ba := make(chan inbound, 64)
	a := &PipeEnd{in: ba, out: ab, closed: make(chan struct{})}
	b := &PipeEnd{in: ab, out: ba, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) Send(ctx context.Context, c ice.Candidate) error {
	return p.push(ctx, inbound{cand: c})
}

func (p *PipeEnd) SendEndOfCandidates(ctx context.Context) error {
	return p.push(ctx, inbound{eoc: true})
}

func (p *PipeEnd) Receive(ctx context.Context) (ice.Candidate, error) {
	select {
	case in := <-p.in:
		return in.unpack()
	default:
	}

	select {
	case <-ctx.Done():
		return ice.Candidate{}, ctx.Err()
	case <-p.closed:
		return ice.Candidate{}, ErrClosed
	case in := <-p.in:
		return in.unpack()
	}
}

// Close closes this end. The other end keeps what was already sent.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *PipeEnd) push(ctx context.Context, in inbound) error {
	select {
	case <-p.closed:
		return ErrClosed
	case <-p.peer.closed:
		return ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrClosed
	case <-p.peer.closed:
		return ErrClosed
	case p.out <- in:
		return nil
	}
}
