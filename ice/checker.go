package ice

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxWaiting is how many pairs are unfrozen and probed per batch.
const DefaultMaxWaiting = 3

// Checker probes the highest priority pairs concurrently and nominates one.
type Checker struct {
	// Name identifies the local peer in the default probe payload.
	Name string

	// MaxWaiting defaults to DefaultMaxWaiting.
	MaxWaiting int

	// ProbeTimeout defaults to DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// Payload builds the probe datagram. Defaults to
	// "ICE-CHECK-<name>-<unix seconds>".
	Payload func(*Pair) []byte

	// Prober defaults to UDPProber.
	Prober Prober

	Observer Observer

	mu sync.Mutex
}

// NewChecker returns a Checker with default settings.
func NewChecker(name string) *Checker {
	return &Checker{
		Name:         name,
		MaxWaiting:   DefaultMaxWaiting,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// CheckPayload returns the default probe payload for name.
func CheckPayload(name string, at time.Time) []byte {
	return fmt.Appendf(nil, "%s%s-%d", checkPrefix, name, at.Unix())
}

const checkPrefix = "ICE-CHECK-"

// Run unfreezes the top pairs, probes all of them at once and, once every
// probe has finished, nominates the first succeeded pair in priority
// order. Pairs outside the batch stay frozen. Only one Run executes at a
// time.
func (c *Checker) Run(ctx context.Context, pairs []*Pair) (*Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obs := observerOrNop(c.Observer)

	ordered := slices.Clone(pairs)
	SortPairs(ordered)

	limit := c.MaxWaiting
	if limit <= 0 {
		limit = DefaultMaxWaiting
	}

	var batch []*Pair
	for _, p := range ordered[:min(limit, len(ordered))] {
		if p.State() != StateFrozen {
			continue
		}
		if err := c.move(obs, p, (*Pair).Unfreeze); err != nil {
			return nil, err
		}
		batch = append(batch, p)
	}

	var eg errgroup.Group
	for _, group := range sameRoute(batch) {
		group := group
		eg.Go(func() error { return c.check(ctx, obs, group) })
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := nominate(ordered)
	if err != nil {
		return nil, err
	}
	obs.Nominated(p)
	return p, nil
}

// check probes the first pair of a group and settles every pair in it
// with the result. Probe failures only fail the pairs; the returned error
// is reserved for broken state transitions.
func (c *Checker) check(ctx context.Context, obs Observer, group []*Pair) error {
	for _, p := range group {
		if err := c.move(obs, p, (*Pair).start); err != nil {
			return err
		}
	}

	timeout := c.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	prober := c.Prober
	if prober == nil {
		prober = UDPProber{}
	}

	lead := group[0]
	settle := (*Pair).succeed
	if err := prober.Probe(ctx, lead, c.payload(lead), timeout); err != nil {
		obs.Warn(WarnProbe, fmt.Errorf("%s: %w", lead, err))
		settle = (*Pair).fail
	}
	for _, p := range group {
		if err := c.move(obs, p, settle); err != nil {
			return err
		}
	}
	return nil
}

// sameRoute groups pairs whose local and remote transport addresses are
// identical, such as a reflexive candidate seen at its own base. Such
// pairs share a single probe. Order follows the input.
func sameRoute(pairs []*Pair) [][]*Pair {
	var groups [][]*Pair
	index := map[string]int{}
	for _, p := range pairs {
		key := p.Local.Addr().String() + "|" + p.Remote.Addr().String()
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], p)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []*Pair{p})
	}
	return groups
}

func (c *Checker) payload(p *Pair) []byte {
	if c.Payload != nil {
		return c.Payload(p)
	}
	return CheckPayload(c.Name, time.Now())
}

func (c *Checker) move(obs Observer, p *Pair, step func(*Pair) error) error {
	from := p.State()
	if err := step(p); err != nil {
		return err
	}
	obs.PairStateChanged(p, from, p.State())
	return nil
}
