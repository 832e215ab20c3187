package ice

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Name is the local peer name, Remote the peer being connected to.
	Name   string
	Remote string

	STUNServer       string
	DiscoveryTimeout time.Duration
	Interfaces       InterfaceSource

	Signaler       Signaler
	ExchangeWindow time.Duration

	MaxWaiting   int
	ProbeTimeout time.Duration
	Prober       Prober

	Observer Observer
}

// Stats counts the non-fatal conditions a session absorbed.
type Stats struct {
	InterfaceBindFailures int
	DiscoveryFailures     int
	SignalingFailures     int
	ExchangeTimeouts      int
	ProbeFailures         int
}

// Session drives one connection attempt to a remote peer.
type Session struct {
	id     uuid.UUID
	cfg    SessionConfig
	obs    *countingObserver
	gather *Gatherer
	check  *Checker

	mu        sync.Mutex
	locals    []Candidate
	remotes   []Candidate
	pairs     []*Pair
	nominated *Pair
}

// NewSession returns a session with a fresh random ID.
func NewSession(cfg SessionConfig) *Session {
	obs := &countingObserver{next: observerOrNop(cfg.Observer)}
	return &Session{
		id:  uuid.New(),
		cfg: cfg,
		obs: obs,
		gather: &Gatherer{
			STUNServer:       cfg.STUNServer,
			DiscoveryTimeout: cfg.DiscoveryTimeout,
			Interfaces:       cfg.Interfaces,
			Observer:         obs,
		},
		check: &Checker{
			Name:         cfg.Name,
			MaxWaiting:   cfg.MaxWaiting,
			ProbeTimeout: cfg.ProbeTimeout,
			Prober:       cfg.Prober,
			Observer:     obs,
		},
	}
}

func (s *Session) ID() uuid.UUID  { return s.id }
func (s *Session) Name() string   { return s.cfg.Name }
func (s *Session) Remote() string { return s.cfg.Remote }

// Gather collects local candidates.
func (s *Session) Gather(ctx context.Context) error {
	cands, err := s.gather.Gather(ctx)
	if err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	s.mu.Lock()
	s.locals = cands
	s.mu.Unlock()
	return nil
}

// Exchange trades candidates with the remote peer through the signaler.
func (s *Session) Exchange(ctx context.Context) error {
	if s.cfg.Signaler == nil {
		return fmt.Errorf("session %s: no signaler", s.id)
	}
	remotes, err := Exchange(ctx, s.cfg.Signaler, s.LocalCandidates(), s.cfg.ExchangeWindow, s.obs)
	s.mu.Lock()
	s.remotes = remotes
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	return nil
}

// FormPairs builds the checklist from the current candidate sets.
func (s *Session) FormPairs() []*Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = FormPairs(s.locals, s.remotes)
	return slices.Clone(s.pairs)
}

// Check runs one check batch and records the nominated pair.
func (s *Session) Check(ctx context.Context) (*Pair, error) {
	s.mu.Lock()
	pairs := s.pairs
	s.mu.Unlock()

	p, err := s.check.Run(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.id, err)
	}
	s.mu.Lock()
	s.nominated = p
	s.mu.Unlock()
	return p, nil
}

// Establish gathers, exchanges, pairs and checks in order.
func (s *Session) Establish(ctx context.Context) (*Pair, error) {
	if err := s.Gather(ctx); err != nil {
		return nil, err
	}
	if err := s.Exchange(ctx); err != nil {
		return nil, err
	}
	s.FormPairs()
	return s.Check(ctx)
}

// Open returns a Conn over the nominated pair.
func (s *Session) Open(ctx context.Context, opts ConnOptions) (*Conn, error) {
	p := s.Nominated()
	if p == nil {
		return nil, fmt.Errorf("session %s: %w", s.id, ErrNotNominated)
	}
	return OpenConn(ctx, p, opts)
}

func (s *Session) LocalCandidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.locals)
}

func (s *Session) RemoteCandidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.remotes)
}

// Pairs returns the checklist. The pairs themselves are shared with a
// running Check and should only be inspected once it returned.
func (s *Session) Pairs() []*Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pairs)
}

func (s *Session) Nominated() *Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nominated
}

func (s *Session) Stats() Stats {
	return s.obs.snapshot()
}

// countingObserver tallies warnings before forwarding every event.
type countingObserver struct {
	next Observer

	mu    sync.Mutex
	stats Stats
}

func (o *countingObserver) CandidateGathered(c Candidate) { o.next.CandidateGathered(c) }
func (o *countingObserver) RemoteCandidate(c Candidate)   { o.next.RemoteCandidate(c) }
func (o *countingObserver) Nominated(p *Pair)             { o.next.Nominated(p) }

func (o *countingObserver) PairStateChanged(p *Pair, from, to PairState) {
	o.next.PairStateChanged(p, from, to)
}

func (o *countingObserver) Warn(w Warning, err error) {
	o.mu.Lock()
	switch w {
	case WarnInterfaceBind:
		o.stats.InterfaceBindFailures++
	case WarnDiscovery:
		o.stats.DiscoveryFailures++
	case WarnSignaling:
		o.stats.SignalingFailures++
	case WarnExchangeTimeout:
		o.stats.ExchangeTimeouts++
	case WarnProbe:
		o.stats.ProbeFailures++
	}
	o.mu.Unlock()
	o.next.Warn(w, err)
}

func (o *countingObserver) snapshot() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
