package ice

import "fmt"

// Pair couples a local candidate with a remote one. Its state only moves
// forward through the transition methods.
type Pair struct {
	Local  Candidate
	Remote Candidate

	priority  uint64
	state     PairState
	nominated bool
}

// NewPair returns a frozen pair.
func NewPair(local, remote Candidate) *Pair {
	return &Pair{
		Local:    local,
		Remote:   remote,
		priority: PairPriority(local.Priority(), remote.Priority()),
		state:    StateFrozen,
	}
}

func (p *Pair) Priority() uint64  { return p.priority }
func (p *Pair) State() PairState  { return p.state }
func (p *Pair) IsNominated() bool { return p.nominated }

// Unfreeze moves a frozen pair to waiting.
func (p *Pair) Unfreeze() error { return p.transition(StateWaiting) }

func (p *Pair) start() error   { return p.transition(StateInProgress) }
func (p *Pair) succeed() error { return p.transition(StateSucceeded) }
func (p *Pair) fail() error    { return p.transition(StateFailed) }

// Nominate marks a succeeded pair as the selected one. Exclusivity across a
// pair list is enforced by nominate.
func (p *Pair) Nominate() error {
	if p.state != StateSucceeded {
		return fmt.Errorf("%w: nominate %s pair", ErrInvalidTransition, p.state)
	}
	p.nominated = true
	return nil
}

func (p *Pair) transition(to PairState) error {
	if !canTransition(p.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, to)
	}
	p.state = to
	return nil
}

func (p *Pair) String() string {
	return fmt.Sprintf("(local) %s <-> (remote) %s [%s]", p.Local, p.Remote, p.state)
}
